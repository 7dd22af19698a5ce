// Package adjudication implements the monitoring & adjudication engine
// (§4.4), the "judge": periodic balance sampling, attack evaluation, and
// settlement triggering. Per §9's cyclic-collaboration note, this is the
// component that holds references to both the vault and the challenge
// lifecycle so the vault itself can stay purely reactive.
package adjudication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bountyvault/core/internal/challenge"
	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/observability/metrics"
	"github.com/bountyvault/core/internal/ports"
	"github.com/bountyvault/core/internal/vault"
)

// ReputationNotifier is the subset of the reputation observer this engine
// notifies on a settled attack. Fire-and-forget per §9.
type ReputationNotifier interface {
	RecordSuccessfulAttack(ctx context.Context, hacker kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error
}

// Engine owns monitoring states, snapshot rings, evaluations, and disputes
// exclusively (§3 Ownership).
type Engine struct {
	mu sync.Mutex

	clock *kernel.Clock

	states      map[uint64]MonitoringState
	snapshots   map[kernel.Principal][]Snapshot
	evaluations map[uint64]Evaluation
	nextEvalID  uint64
	disputes    map[uint64]Dispute
	nextDispID  uint64

	probeFailureStreak map[uint64]int

	challengeCaller kernel.Principal // checked by StartMonitoring/StopMonitoring; the only caller allowed to invoke them
	adminSet        map[kernel.Principal]struct{}

	probe      ports.BalanceProbe
	vault      *vault.Vault
	vaultAuth  kernel.Principal
	challenges *challenge.Engine
	reputation ReputationNotifier

	metrics *metrics.AdjudicationCollector
}

// Config bundles the Engine's constructor dependencies.
type Config struct {
	ChallengeCaller kernel.Principal
	Admins          []kernel.Principal
	Probe           ports.BalanceProbe
	Vault           *vault.Vault
	VaultAuth       kernel.Principal
	Challenges      *challenge.Engine
	Reputation      ReputationNotifier
	Metrics         *metrics.AdjudicationCollector
}

func New(cfg Config) *Engine {
	adminSet := make(map[kernel.Principal]struct{}, len(cfg.Admins))
	for _, a := range cfg.Admins {
		adminSet[a] = struct{}{}
	}
	return &Engine{
		clock:              kernel.NewClock(),
		states:             make(map[uint64]MonitoringState),
		snapshots:          make(map[kernel.Principal][]Snapshot),
		evaluations:        make(map[uint64]Evaluation),
		disputes:           make(map[uint64]Dispute),
		probeFailureStreak: make(map[uint64]int),
		challengeCaller:    cfg.ChallengeCaller,
		adminSet:           adminSet,
		probe:              cfg.Probe,
		vault:              cfg.Vault,
		vaultAuth:          cfg.VaultAuth,
		challenges:         cfg.Challenges,
		reputation:         cfg.Reputation,
		metrics:            cfg.Metrics,
	}
}

// SetNowFunc overrides the engine's time source for deterministic testing.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.SetNowFunc(now)
}

func (e *Engine) isAdmin(caller kernel.Principal) bool {
	_, ok := e.adminSet[caller]
	return ok
}

func (e *Engine) appendSnapshotLocked(target kernel.Principal, balance uint64, at time.Time) {
	ring := e.snapshots[target]
	ring = append(ring, Snapshot{Target: target, Balance: balance, Timestamp: at})
	if uint64(len(ring)) > kernel.MaxBalanceHistory {
		ring = ring[uint64(len(ring))-kernel.MaxBalanceHistory:]
	}
	e.snapshots[target] = ring
}

// dropPercent computes the integer drop percentage of current relative to
// initial; ok is false when initial is zero (no drop is computable).
func dropPercent(initial, current uint64) (pct uint64, ok bool) {
	if initial == 0 {
		return 0, false
	}
	if current >= initial {
		return 0, true
	}
	return (initial - current) * 100 / initial, true
}

// StartMonitoring begins tracking target for challengeID. Restricted to the
// registered challenge-lifecycle caller (§4.4).
func (e *Engine) StartMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64, target kernel.Principal) error {
	if caller != e.challengeCaller {
		return kernel.NewError(kernel.Unauthorized, "caller %s is not the registered challenge subsystem", caller)
	}
	if e.probe == nil {
		return kernel.NewError(kernel.InternalError, "no balance probe configured")
	}

	e.mu.Lock()
	if existing, ok := e.states[challengeID]; ok && existing.MonitoringActive {
		e.mu.Unlock()
		return kernel.ErrAlreadyMonitor
	}
	e.mu.Unlock()

	balance, err := e.probe.Probe(ctx, target)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveProbeError()
		}
		return kernel.NewError(kernel.NetworkError, "probe failed: %v", err)
	}

	now := e.clock.Now()
	e.mu.Lock()
	e.states[challengeID] = MonitoringState{
		ChallengeID:      challengeID,
		Target:           target,
		InitialBalance:   balance,
		CurrentBalance:   balance,
		LastCheck:        now,
		MonitoringActive: true,
	}
	e.appendSnapshotLocked(target, balance, now)
	e.mu.Unlock()
	return nil
}

// StopMonitoring halts tracking for a challenge. Idempotent: stopping an
// already-stopped state is a no-op. Restricted to the registered
// challenge-lifecycle caller (§4.4).
func (e *Engine) StopMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64) error {
	if caller != e.challengeCaller {
		return kernel.NewError(kernel.Unauthorized, "caller %s is not the registered challenge subsystem", caller)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[challengeID]
	if !ok {
		return nil
	}
	state.MonitoringActive = false
	e.states[challengeID] = state
	return nil
}

// Tick probes every actively-monitored target whose last check is at least
// BALANCE_CHECK_INTERVAL old, updates its snapshot ring, and sets the sticky
// attack_detected flag when the drop threshold is crossed. Probe failures
// are non-fatal: the tick is skipped and last_check is not advanced; three
// consecutive failures are logged as escalated NetworkErrors by the caller
// (cmd/bountyd wires a logger around Tick's returned errors).
func (e *Engine) Tick(ctx context.Context) []error {
	start := e.clock.Now()
	var tickErrs []error

	e.mu.Lock()
	due := make([]MonitoringState, 0)
	for _, st := range e.states {
		if st.MonitoringActive && start.Sub(st.LastCheck) >= kernel.BalanceCheckInterval {
			due = append(due, st)
		}
	}
	e.mu.Unlock()

	for _, st := range due {
		balance, err := e.probe.Probe(ctx, st.Target)
		if err != nil {
			e.mu.Lock()
			e.probeFailureStreak[st.ChallengeID]++
			streak := e.probeFailureStreak[st.ChallengeID]
			e.mu.Unlock()
			if e.metrics != nil {
				e.metrics.ObserveProbeError()
			}
			if streak >= 3 {
				tickErrs = append(tickErrs, kernel.NewError(kernel.NetworkError, "challenge %d: %d consecutive probe failures", st.ChallengeID, streak))
			}
			continue
		}

		now := e.clock.Now()
		e.mu.Lock()
		e.probeFailureStreak[st.ChallengeID] = 0
		current := e.states[st.ChallengeID]
		current.CurrentBalance = balance
		current.LastCheck = now
		if pct, ok := dropPercent(current.InitialBalance, balance); ok && pct >= kernel.AttackThresholdPercent {
			current.AttackDetected = true
		}
		e.states[st.ChallengeID] = current
		e.appendSnapshotLocked(st.Target, balance, now)
		e.mu.Unlock()
	}

	if e.metrics != nil {
		e.metrics.ObserveTick(e.clock.Now().Sub(start).Seconds())
	}
	return tickErrs
}

// EvaluateAttack probes once more, records the decision, and on a Valid
// decision triggers settlement: unlock the bounty to the hacker, flip the
// challenge to Completed, stop monitoring, and notify the reputation
// observer. If the unlock fails the evaluation is still persisted but the
// challenge is left untouched so the caller may retry.
func (e *Engine) EvaluateAttack(ctx context.Context, challengeID uint64, attempt AttackAttempt) (Evaluation, error) {
	e.mu.Lock()
	state, ok := e.states[challengeID]
	if !ok || !state.MonitoringActive {
		e.mu.Unlock()
		return Evaluation{}, kernel.ErrNotMonitoring
	}
	target := state.Target
	e.mu.Unlock()

	balance, err := e.probe.Probe(ctx, target)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveProbeError()
		}
		return Evaluation{}, kernel.NewError(kernel.NetworkError, "probe failed: %v", err)
	}

	now := e.clock.Now()
	e.mu.Lock()
	state = e.states[challengeID]
	state.CurrentBalance = balance
	state.LastCheck = now
	e.appendSnapshotLocked(target, balance, now)

	pct, computable := dropPercent(state.InitialBalance, balance)
	var decision kernel.Decision
	var reasoning string
	if !computable {
		decision = kernel.DecisionInvalid
		reasoning = "no initial balance"
	} else if pct >= kernel.AttackThresholdPercent {
		decision = kernel.DecisionValid
		state.AttackDetected = true
		reasoning = formatReasoning(pct, true)
	} else {
		decision = kernel.DecisionInvalid
		reasoning = formatReasoning(pct, false)
	}
	e.states[challengeID] = state

	e.nextEvalID++
	eval := Evaluation{
		ID:              e.nextEvalID,
		ChallengeID:     challengeID,
		AttackAttemptID: attempt.ID,
		Decision:        decision,
		Reasoning:       reasoning,
		Timestamp:       now,
		Evaluator:       attempt.Hacker,
	}
	e.evaluations[eval.ID] = eval
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveEvaluation(decision)
	}

	if decision != kernel.DecisionValid {
		return eval, nil
	}

	if e.vault == nil {
		return eval, nil
	}
	lock, found := e.vault.GetLockInfo(challengeID)
	if !found || lock.Status != kernel.LockActive {
		// Concurrent evaluate_attack calls serialize on the vault's
		// single-active-lock invariant: the lock is already released.
		return eval, nil
	}
	if _, err := e.vault.UnlockFunds(ctx, e.vaultAuth, vault.UnlockRequest{
		ChallengeID: challengeID,
		Recipient:   attempt.Hacker,
		Amount:      lock.Amount,
		Reason:      kernel.UnlockReason{Kind: kernel.ReasonBountyPayout, Winner: attempt.Hacker},
	}); err != nil {
		return eval, nil
	}

	if e.challenges != nil {
		_ = e.challenges.UpdateStatus(challengeID, kernel.ChallengeCompleted)
	}
	_ = e.StopMonitoring(ctx, e.challengeCaller, challengeID)
	if e.reputation != nil {
		_ = e.reputation.RecordSuccessfulAttack(ctx, attempt.Hacker, challengeID, lock.Amount, lock.Token)
	}

	return eval, nil
}

func formatReasoning(pct uint64, valid bool) string {
	verdict := "below threshold"
	if valid {
		verdict = "meets threshold"
	}
	return fmt.Sprintf("drop %d%% %s of %d%%", pct, verdict, kernel.AttackThresholdPercent)
}

// CreateDispute opens a new dispute case. Requires a non-anonymous caller
// and a non-empty reason; evidence blobs are each assigned a generated
// reference.
func (e *Engine) CreateDispute(caller kernel.Principal, challengeID, attemptID uint64, reason string, evidence [][]byte) (uint64, error) {
	if err := kernel.CheckCallerNotAnonymous(caller); err != nil {
		return 0, err
	}
	if reason == "" {
		return 0, kernel.NewError(kernel.InvalidInput, "dispute reason must not be empty")
	}

	items := make([]EvidenceItem, len(evidence))
	for i, blob := range evidence {
		items[i] = EvidenceItem{Reference: uuid.NewString(), Blob: append([]byte(nil), blob...)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextDispID++
	id := e.nextDispID
	e.disputes[id] = Dispute{
		ID:              id,
		ChallengeID:     challengeID,
		AttackAttemptID: attemptID,
		Disputer:        caller,
		Reason:          reason,
		Evidence:        items,
		Status:          kernel.DisputeOpen,
		CreatedAt:       e.clock.Now(),
	}
	return id, nil
}

// ResolveDispute sets a dispute's terminal status and resolution text.
// Restricted to admins. Resolution is advisory and never automatically
// reverts a settlement.
func (e *Engine) ResolveDispute(admin kernel.Principal, disputeID uint64, status kernel.DisputeStatus, resolution string) error {
	if !e.isAdmin(admin) {
		return kernel.NewError(kernel.PermissionDenied, "caller %s is not an admin", admin)
	}
	if status != kernel.DisputeResolved && status != kernel.DisputeRejected {
		return kernel.NewError(kernel.InvalidInput, "resolution status must be Resolved or Rejected")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	dispute, ok := e.disputes[disputeID]
	if !ok {
		return kernel.NewError(kernel.NotFound, "dispute %d not found", disputeID)
	}
	now := e.clock.Now()
	dispute.Status = status
	dispute.ResolvedAt = &now
	dispute.Resolution = resolution
	e.disputes[disputeID] = dispute
	return nil
}

// GetMonitoringState returns a clone of a challenge's monitoring state.
func (e *Engine) GetMonitoringState(challengeID uint64) (MonitoringState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[challengeID]
	return st.Clone(), ok
}

// GetDispute returns a clone of a dispute case.
func (e *Engine) GetDispute(disputeID uint64) (Dispute, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.disputes[disputeID]
	if !ok {
		return Dispute{}, kernel.NewError(kernel.NotFound, "dispute %d not found", disputeID)
	}
	return d.Clone(), nil
}
