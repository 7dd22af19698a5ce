package ports

import (
	"context"
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// NoopTransfer is a TransferPort that always succeeds. It is the default
// when the core's own ledger is the sole settlement rail, matching the "in
// the simplest mode... this port is a no-op" contract in §6.
type NoopTransfer struct{}

func (NoopTransfer) Transfer(ctx context.Context, from, to kernel.Principal, token kernel.Token, amount uint64) error {
	return nil
}

// StaticDeploy is a DeployPort reference implementation that mints a
// deterministic program principal derived from a monotonic counter, for use
// outside production deployments (tests, local runs without a real
// provisioning backend).
type StaticDeploy struct {
	counter uint64
}

func (d *StaticDeploy) Deploy(ctx context.Context, wasmImage []byte, initArg []byte) (kernel.Principal, error) {
	d.counter++
	var p kernel.Principal
	p[18] = byte(d.counter >> 8)
	p[19] = byte(d.counter)
	return p, nil
}

// VaultProbe samples an address's own custodial balance as the observable
// "target balance" for monitoring, for deployments that forgo an external
// program balance oracle in favor of the vault's own ledger.
type VaultProbe struct {
	balance func(ctx context.Context, target kernel.Principal) (uint64, error)
}

// NewVaultProbe wraps a balance lookup function as a BalanceProbe.
func NewVaultProbe(balance func(ctx context.Context, target kernel.Principal) (uint64, error)) VaultProbe {
	return VaultProbe{balance: balance}
}

func (p VaultProbe) Probe(ctx context.Context, target kernel.Principal) (uint64, error) {
	if p.balance == nil {
		return 0, nil
	}
	return p.balance(ctx, target)
}

// TickerScheduler implements Scheduler with time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}
