// Package ports defines the external capability interfaces the core
// consumes (§6): token transfer rails, target-program deployment, balance
// probing, and scheduling. Each is modeled as a narrow Go interface so the
// engines can be constructed with any implementation; the in-process
// reference implementations in noop.go are what both the tests and
// cmd/bountyd wire in.
package ports

import (
	"context"
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// TransferPort moves tokens on external rails. In the simplest deployment
// the vault's own ledger is the sole rail and this is a no-op success.
type TransferPort interface {
	Transfer(ctx context.Context, from, to kernel.Principal, token kernel.Token, amount uint64) error
}

// DeployPort creates a new target program, installs the supplied image, and
// returns the program's principal.
type DeployPort interface {
	Deploy(ctx context.Context, wasmImage []byte, initArg []byte) (kernel.Principal, error)
}

// BalanceProbe returns the target's observable balance in the challenge's
// token base units.
type BalanceProbe interface {
	Probe(ctx context.Context, target kernel.Principal) (uint64, error)
}

// Scheduler delivers periodic ticks and sweeps with at-least-once
// semantics; callers must be idempotent against duplicate deliveries by
// keying on now >= lastCheck + interval.
type Scheduler interface {
	// Every runs fn roughly every interval until the supplied context is
	// canceled. Start is asynchronous; Every returns immediately.
	Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context))
}
