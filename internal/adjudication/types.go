package adjudication

import (
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// MonitoringState is the per-challenge tracking of a target's balance over
// time. Invariant M1: once AttackDetected is true it stays true until
// monitoring stops.
type MonitoringState struct {
	ChallengeID      uint64           `json:"challengeId"`
	Target           kernel.Principal `json:"target"`
	InitialBalance   uint64           `json:"initialBalance"`
	CurrentBalance   uint64           `json:"currentBalance"`
	LastCheck        time.Time        `json:"lastCheck"`
	MonitoringActive bool             `json:"monitoringActive"`
	AttackDetected   bool             `json:"attackDetected"`
}

func (m MonitoringState) Clone() MonitoringState {
	return m
}

// Snapshot is one entry in a target's bounded balance history ring.
type Snapshot struct {
	Target    kernel.Principal `json:"target"`
	Balance   uint64           `json:"balance"`
	Timestamp time.Time        `json:"timestamp"`
}

// AttackAttempt identifies the hacker submitting an exploit attempt for
// evaluation.
type AttackAttempt struct {
	ID     uint64
	Hacker kernel.Principal
}

// Evaluation is a recorded decision on whether an attack attempt succeeded.
type Evaluation struct {
	ID              uint64           `json:"id"`
	ChallengeID     uint64           `json:"challengeId"`
	AttackAttemptID uint64           `json:"attackAttemptId"`
	Decision        kernel.Decision  `json:"decision"`
	Reasoning       string           `json:"reasoning"`
	Timestamp       time.Time        `json:"timestamp"`
	Evaluator       kernel.Principal `json:"evaluator"`
}

func (e Evaluation) Clone() Evaluation {
	return e
}

// EvidenceItem is one opaque blob attached to a dispute, addressed by a
// generated reference so clients can resubmit or fetch it independently of
// the dispute record itself.
type EvidenceItem struct {
	Reference string `json:"reference"`
	Blob      []byte `json:"-"`
}

// Dispute is a user-submitted contest of an evaluation, advisory only.
type Dispute struct {
	ID              uint64               `json:"id"`
	ChallengeID     uint64               `json:"challengeId"`
	AttackAttemptID uint64               `json:"attackAttemptId"`
	Disputer        kernel.Principal     `json:"disputer"`
	Reason          string               `json:"reason"`
	Evidence        []EvidenceItem       `json:"evidence"`
	Status          kernel.DisputeStatus `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	ResolvedAt      *time.Time           `json:"resolvedAt,omitempty"`
	Resolution      string               `json:"resolution,omitempty"`
}

func (d Dispute) Clone() Dispute {
	out := d
	if d.Evidence != nil {
		out.Evidence = make([]EvidenceItem, len(d.Evidence))
		for i, item := range d.Evidence {
			out.Evidence[i] = EvidenceItem{Reference: item.Reference, Blob: append([]byte(nil), item.Blob...)}
		}
	}
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
