// Package challenge implements the challenge lifecycle manager (§4.3):
// admission, the finite state graph, creator-quota enforcement, target
// deployment, and the automatic expiration sweep.
package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/observability/metrics"
	"github.com/bountyvault/core/internal/ports"
	"github.com/bountyvault/core/internal/vault"
)

// Monitor is the subset of the adjudication engine the challenge lifecycle
// depends on. Defined locally (rather than importing the adjudication
// package) because adjudication in turn needs to flip challenge status on
// settlement — the cycle is broken by depending on behavior, not a concrete
// type, exactly as §9 "Cyclic collaboration" prescribes.
type Monitor interface {
	StartMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64, target kernel.Principal) error
	StopMonitoring(ctx context.Context, caller kernel.Principal, challengeID uint64) error
}

// ReputationNotifier is the subset of the reputation observer the challenge
// lifecycle notifies on creation. Fire-and-forget: a failure here never
// rolls back challenge creation (§9).
type ReputationNotifier interface {
	RecordChallengeCreated(ctx context.Context, company kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error
}

// Engine owns challenge records and the creator-quota index exclusively.
type Engine struct {
	mu sync.Mutex

	clock *kernel.Clock

	challenges   map[uint64]Challenge
	creatorIndex map[kernel.Principal]map[uint64]struct{}
	nextID       uint64

	adminSet map[kernel.Principal]struct{}

	vault      *vault.Vault
	vaultAuth  kernel.Principal // this component's own principal when calling the vault or the registered Monitor
	monitor    Monitor
	reputation ReputationNotifier
	deploy     ports.DeployPort

	metrics *metrics.ChallengeCollector
}

// Config bundles the Engine's constructor dependencies.
type Config struct {
	Admins     []kernel.Principal
	Vault      *vault.Vault
	VaultAuth  kernel.Principal
	Monitor    Monitor
	Reputation ReputationNotifier
	Deploy     ports.DeployPort
	Metrics    *metrics.ChallengeCollector
}

// New constructs a challenge Engine. VaultAuth is the principal this
// component presents to the vault's authorized-caller check; it must be
// added to the vault's authorized set out of band (cmd/bountyd wiring).
func New(cfg Config) *Engine {
	adminSet := make(map[kernel.Principal]struct{}, len(cfg.Admins))
	for _, a := range cfg.Admins {
		adminSet[a] = struct{}{}
	}
	return &Engine{
		clock:        kernel.NewClock(),
		challenges:   make(map[uint64]Challenge),
		creatorIndex: make(map[kernel.Principal]map[uint64]struct{}),
		adminSet:     adminSet,
		vault:        cfg.Vault,
		vaultAuth:    cfg.VaultAuth,
		monitor:      cfg.Monitor,
		reputation:   cfg.Reputation,
		deploy:       cfg.Deploy,
		metrics:      cfg.Metrics,
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

// nonTerminalCountLocked counts how many of caller's challenges are not yet in a
// terminal state. Caller must hold mu.
func (e *Engine) nonTerminalCountLocked(caller kernel.Principal) int {
	count := 0
	for id := range e.creatorIndex[caller] {
		if ch, ok := e.challenges[id]; ok && !ch.IsTerminal() {
			count++
		}
	}
	return count
}

// CreateChallenge validates the request, enforces the per-user quota, locks
// the bounty with the vault, and persists the new challenge in Created
// status. Notification of the reputation observer is best-effort.
func (e *Engine) CreateChallenge(ctx context.Context, caller kernel.Principal, req CreateRequest) (uint64, error) {
	if err := kernel.CheckCallerNotAnonymous(caller); err != nil {
		return 0, err
	}
	if err := kernel.ValidateWasmSize(req.WasmImage); err != nil {
		return 0, err
	}
	if err := kernel.ValidateInterfaceDescription(req.InterfaceDescription); err != nil {
		return 0, err
	}
	if err := kernel.ValidateDescription(req.Description); err != nil {
		return 0, err
	}
	if err := kernel.ValidateChallengeDuration(req.Duration); err != nil {
		return 0, err
	}
	if err := kernel.ValidateDifficulty(req.Difficulty); err != nil {
		return 0, err
	}
	if req.BountyAmount < kernel.MinLockAmount {
		return 0, kernel.NewError(kernel.InvalidInput, "bounty amount %d below minimum lock amount %d", req.BountyAmount, kernel.MinLockAmount)
	}

	e.mu.Lock()
	if e.nonTerminalCountLocked(caller) >= kernel.MaxChallengesPerUser {
		e.mu.Unlock()
		return 0, kernel.NewError(kernel.ResourceLimit, "caller %s has reached the maximum of %d non-terminal challenges", caller, kernel.MaxChallengesPerUser)
	}

	now := e.clock.Now()
	e.nextID++
	id := e.nextID

	ch := Challenge{
		ID:                   id,
		Company:              caller,
		WasmImage:            append([]byte(nil), req.WasmImage...),
		InterfaceDescription: req.InterfaceDescription,
		BountyAmount:         req.BountyAmount,
		Token:                req.Token,
		StartTime:            now,
		EndTime:              now.Add(req.Duration),
		Status:               kernel.ChallengeCreated,
		Description:          req.Description,
		Difficulty:           req.Difficulty,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	e.challenges[id] = ch
	if e.creatorIndex[caller] == nil {
		e.creatorIndex[caller] = make(map[uint64]struct{})
	}
	e.creatorIndex[caller][id] = struct{}{}
	e.mu.Unlock()

	if e.vault != nil {
		lockErr := e.vault.LockFunds(ctx, e.vaultAuth, vault.LockRequest{
			ChallengeID: id,
			Company:     caller,
			Amount:      req.BountyAmount,
			Token:       req.Token,
			Duration:    req.Duration,
		})
		if lockErr != nil {
			e.mu.Lock()
			delete(e.challenges, id)
			delete(e.creatorIndex[caller], id)
			e.mu.Unlock()
			return 0, lockErr
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveCreated()
	}
	if e.reputation != nil {
		_ = e.reputation.RecordChallengeCreated(ctx, caller, id, req.BountyAmount, req.Token)
	}

	return id, nil
}

// canTransition reports whether the named status transition is permitted by
// the graph in §4.3. Self-transitions are always permitted (idempotent).
func canTransition(from, to kernel.ChallengeStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case kernel.ChallengeCreated:
		return to == kernel.ChallengeActive || to == kernel.ChallengeCancelled
	case kernel.ChallengeActive:
		return to == kernel.ChallengeCompleted || to == kernel.ChallengeExpired || to == kernel.ChallengeCancelled
	default:
		return false
	}
}

// UpdateStatus applies a direct status transition, used both by admin
// tooling and internally by DeployTarget/the sweep/adjudication settlement.
// Self-transitions are idempotent no-ops; disallowed transitions leave the
// record unchanged and return InvalidState.
func (e *Engine) UpdateStatus(challengeID uint64, newStatus kernel.ChallengeStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.challenges[challengeID]
	if !ok {
		return kernel.NewError(kernel.NotFound, "challenge %d not found", challengeID)
	}
	if !canTransition(ch.Status, newStatus) {
		return kernel.NewError(kernel.InvalidState, "cannot transition challenge %d from %s to %s", challengeID, ch.Status, newStatus)
	}
	if ch.Status == newStatus {
		return nil
	}
	ch.Status = newStatus
	ch.UpdatedAt = e.clock.Now()
	e.challenges[challengeID] = ch
	return nil
}

// DeployTarget installs the challenge's wasm image via the DeployPort and,
// on success, activates the challenge and starts monitoring. Callable only
// by the challenge's company or an admin, and only while Created.
func (e *Engine) DeployTarget(ctx context.Context, caller kernel.Principal, challengeID uint64) (kernel.Principal, error) {
	e.mu.Lock()
	ch, ok := e.challenges[challengeID]
	if !ok {
		e.mu.Unlock()
		return kernel.Principal{}, kernel.NewError(kernel.NotFound, "challenge %d not found", challengeID)
	}
	if caller != ch.Company && !e.isAdmin(caller) {
		e.mu.Unlock()
		return kernel.Principal{}, kernel.NewError(kernel.PermissionDenied, "caller %s may not deploy target for challenge %d", caller, challengeID)
	}
	if ch.Status != kernel.ChallengeCreated {
		e.mu.Unlock()
		return kernel.Principal{}, kernel.NewError(kernel.InvalidState, "challenge %d is not in Created status", challengeID)
	}
	image := append([]byte(nil), ch.WasmImage...)
	e.mu.Unlock()

	if e.deploy == nil {
		return kernel.Principal{}, kernel.NewError(kernel.InternalError, "no deploy port configured")
	}
	target, err := e.deploy.Deploy(ctx, image, nil)
	if err != nil {
		return kernel.Principal{}, kernel.NewError(kernel.NetworkError, "deploy failed: %v", err)
	}

	e.mu.Lock()
	ch, ok = e.challenges[challengeID]
	if !ok {
		e.mu.Unlock()
		return kernel.Principal{}, kernel.NewError(kernel.NotFound, "challenge %d not found", challengeID)
	}
	if ch.Status != kernel.ChallengeCreated {
		e.mu.Unlock()
		return kernel.Principal{}, kernel.NewError(kernel.InvalidState, "challenge %d is no longer Created", challengeID)
	}
	ch.TargetProgramID = &target
	ch.Status = kernel.ChallengeActive
	ch.UpdatedAt = e.clock.Now()
	e.challenges[challengeID] = ch
	e.mu.Unlock()

	if e.monitor != nil {
		if err := e.monitor.StartMonitoring(ctx, e.vaultAuth, challengeID, target); err != nil {
			return kernel.Principal{}, kernel.NewError(kernel.InternalError, "failed to start monitoring: %v", err)
		}
	}

	return target, nil
}

// Cancel releases the lock (if any) with reason ChallengeCancelled and
// flips the challenge to Cancelled. Only the company (pre-Active) or an
// admin may cancel.
func (e *Engine) Cancel(ctx context.Context, caller kernel.Principal, challengeID uint64) error {
	e.mu.Lock()
	ch, ok := e.challenges[challengeID]
	if !ok {
		e.mu.Unlock()
		return kernel.NewError(kernel.NotFound, "challenge %d not found", challengeID)
	}
	isAdmin := e.isAdmin(caller)
	if caller != ch.Company && !isAdmin {
		e.mu.Unlock()
		return kernel.NewError(kernel.PermissionDenied, "caller %s may not cancel challenge %d", caller, challengeID)
	}
	if !isAdmin && ch.Status != kernel.ChallengeCreated {
		e.mu.Unlock()
		return kernel.NewError(kernel.PermissionDenied, "company may only cancel a challenge before it is Active")
	}
	if !canTransition(ch.Status, kernel.ChallengeCancelled) {
		e.mu.Unlock()
		return kernel.NewError(kernel.InvalidState, "challenge %d cannot be cancelled from %s", challengeID, ch.Status)
	}
	company := ch.Company
	e.mu.Unlock()

	if e.vault != nil {
		if lock, found := e.vault.GetLockInfo(challengeID); found && lock.Status == kernel.LockActive {
			if _, err := e.vault.UnlockFunds(ctx, e.vaultAuth, vault.UnlockRequest{
				ChallengeID: challengeID,
				Recipient:   company,
				Amount:      lock.Amount,
				Reason:      kernel.UnlockReason{Kind: kernel.ReasonChallengeCancelled},
			}); err != nil {
				return err
			}
		}
	}

	return e.UpdateStatus(challengeID, kernel.ChallengeCancelled)
}

// ExpirationSweep walks all Active challenges and expires those whose
// EndTime has passed: stop monitoring, refund the lock, flip to Expired. A
// challenge that fails any step stays Active and is retried on the next
// sweep.
func (e *Engine) ExpirationSweep(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.ObserveSweepRun()
	}

	now := e.clock.Now()
	e.mu.Lock()
	due := make([]Challenge, 0)
	for _, ch := range e.challenges {
		if ch.Status == kernel.ChallengeActive && !now.Before(ch.EndTime) {
			due = append(due, ch.Clone())
		}
	}
	e.mu.Unlock()

	for _, ch := range due {
		if e.monitor != nil {
			if err := e.monitor.StopMonitoring(ctx, e.vaultAuth, ch.ID); err != nil {
				continue
			}
		}
		if e.vault != nil {
			lock, found := e.vault.GetLockInfo(ch.ID)
			if found && lock.Status == kernel.LockActive {
				if _, err := e.vault.UnlockFunds(ctx, e.vaultAuth, vault.UnlockRequest{
					ChallengeID: ch.ID,
					Recipient:   ch.Company,
					Amount:      lock.Amount,
					Reason:      kernel.UnlockReason{Kind: kernel.ReasonChallengeExpired},
				}); err != nil {
					continue
				}
			}
		}
		_ = e.UpdateStatus(ch.ID, kernel.ChallengeExpired)
	}
}

// GetChallenge returns a clone of the challenge record.
func (e *Engine) GetChallenge(id uint64) (Challenge, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.challenges[id]
	if !ok {
		return Challenge{}, kernel.NewError(kernel.NotFound, "challenge %d not found", id)
	}
	return ch.Clone(), nil
}

// ListChallenges returns all challenges (optionally filtered by status),
// newest-first, paginated.
func (e *Engine) ListChallenges(statusFilter *kernel.ChallengeStatus, offset, limit uint64) (kernel.ApiResponse[Challenge], error) {
	if err := kernel.ValidatePagination(offset, limit); err != nil {
		return kernel.ApiResponse[Challenge]{}, err
	}
	e.mu.Lock()
	all := make([]Challenge, 0, len(e.challenges))
	for _, ch := range e.challenges {
		if statusFilter != nil && ch.Status != *statusFilter {
			continue
		}
		all = append(all, ch.Clone())
	}
	e.mu.Unlock()

	sortNewestFirst(all)
	return kernel.Paginate(all, offset, limit), nil
}

// GetCompanyChallenges returns a company's challenges newest-first, paginated.
func (e *Engine) GetCompanyChallenges(company kernel.Principal, offset, limit uint64) (kernel.ApiResponse[Challenge], error) {
	if err := kernel.ValidatePagination(offset, limit); err != nil {
		return kernel.ApiResponse[Challenge]{}, err
	}
	e.mu.Lock()
	ids := e.creatorIndex[company]
	all := make([]Challenge, 0, len(ids))
	for id := range ids {
		if ch, ok := e.challenges[id]; ok {
			all = append(all, ch.Clone())
		}
	}
	e.mu.Unlock()

	sortNewestFirst(all)
	return kernel.Paginate(all, offset, limit), nil
}

func sortNewestFirst(challenges []Challenge) {
	for i := 1; i < len(challenges); i++ {
		j := i
		for j > 0 && challenges[j-1].CreatedAt.Before(challenges[j].CreatedAt) {
			challenges[j-1], challenges[j] = challenges[j], challenges[j-1]
			j--
		}
	}
}

// GetChallengeStats aggregates counts and bounty totals across all challenges.
func (e *Engine) GetChallengeStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := Stats{ByStatus: make(map[string]uint64)}
	for _, ch := range e.challenges {
		stats.Total++
		stats.ByStatus[ch.Status.String()]++
		stats.TotalBounty += ch.BountyAmount
	}
	return stats
}
