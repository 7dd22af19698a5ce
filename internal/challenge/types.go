package challenge

import (
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// Challenge is a company's posted bounty and the program it targets.
// Invariant C1: EndTime > StartTime; C2: Status only advances per the
// transition graph in engine.go; C3: Active iff a monitoring state exists
// with MonitoringActive=true; C4: Completed/Expired implies the lock is
// Released (enforced by the order of operations in the engine, not stored
// redundantly here).
type Challenge struct {
	ID                   uint64                `json:"id"`
	Company              kernel.Principal      `json:"company"`
	TargetProgramID      *kernel.Principal     `json:"targetProgramId,omitempty"`
	WasmImage            []byte                `json:"-"`
	InterfaceDescription string                `json:"interfaceDescription"`
	BountyAmount         uint64                `json:"bountyAmount"`
	Token                kernel.Token          `json:"token"`
	StartTime            time.Time             `json:"startTime"`
	EndTime              time.Time             `json:"endTime"`
	Status               kernel.ChallengeStatus `json:"status"`
	Description          string                `json:"description"`
	Difficulty           int                   `json:"difficulty"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// Clone returns a deep copy, duplicating the wasm image buffer and the
// optional target-program pointer so callers cannot mutate engine state
// through a returned value.
func (c Challenge) Clone() Challenge {
	out := c
	if c.WasmImage != nil {
		out.WasmImage = append([]byte(nil), c.WasmImage...)
	}
	if c.TargetProgramID != nil {
		id := *c.TargetProgramID
		out.TargetProgramID = &id
	}
	return out
}

// IsTerminal reports whether the status is one of the three terminal states.
func (c Challenge) IsTerminal() bool {
	switch c.Status {
	case kernel.ChallengeCompleted, kernel.ChallengeExpired, kernel.ChallengeCancelled:
		return true
	default:
		return false
	}
}

// CreateRequest is the argument shape for create_challenge.
type CreateRequest struct {
	WasmImage            []byte
	InterfaceDescription string
	BountyAmount         uint64
	Duration             time.Duration
	Token                kernel.Token
	Description          string
	Difficulty           int
}

// Stats aggregates counts across all challenges for get_challenge_stats.
type Stats struct {
	Total      uint64            `json:"total"`
	ByStatus   map[string]uint64 `json:"byStatus"`
	TotalBounty uint64           `json:"totalBounty"`
}
