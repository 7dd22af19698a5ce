// Package vault implements the custodial ledger (§4.2): per-(owner, token)
// balances split into available/locked pools, atomic reservation against a
// challenge, and the fee-split settlement payout.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/observability/metrics"
	"github.com/bountyvault/core/internal/ports"
)

// Vault owns balance rows, lock rows, and the transaction log exclusively
// (§3 Ownership). It runs under a single process-wide mutex per §5: every
// mutating operation takes the lock, does all of its reads/writes, and
// releases it before returning — it never calls back into another
// component while holding it, since the vault is specified as purely
// reactive (§9).
type Vault struct {
	mu sync.Mutex

	clock *kernel.Clock

	balances map[balanceKey]BalanceRow
	locks    map[uint64]LockRow
	txLog    []Transaction
	nextTxID uint64

	authorizedCallers map[kernel.Principal]struct{}
	adminSet          map[kernel.Principal]struct{}
	paused            bool
	feeRecipient      kernel.Principal
	feeBasisPoints    uint64

	transfer ports.TransferPort
	metrics  *metrics.VaultCollector
}

// New constructs a Vault seeded with the given admin principals and an
// initial platform fee recipient, using the spec-default platform fee of
// kernel.PlatformFeeBasisPoints. At least one admin must be supplied or the
// admin set can never be grown after construction.
func New(admins []kernel.Principal, feeRecipient kernel.Principal, transfer ports.TransferPort, m *metrics.VaultCollector) *Vault {
	return NewWithFeeBasisPoints(admins, feeRecipient, kernel.PlatformFeeBasisPoints, transfer, m)
}

// NewWithFeeBasisPoints is New but with an operator-supplied platform fee
// override (internal/config's bounty.toml Thresholds), in basis points.
func NewWithFeeBasisPoints(admins []kernel.Principal, feeRecipient kernel.Principal, feeBasisPoints uint64, transfer ports.TransferPort, m *metrics.VaultCollector) *Vault {
	if transfer == nil {
		transfer = ports.NoopTransfer{}
	}
	adminSet := make(map[kernel.Principal]struct{}, len(admins))
	for _, a := range admins {
		adminSet[a] = struct{}{}
	}
	return &Vault{
		clock:             kernel.NewClock(),
		balances:          make(map[balanceKey]BalanceRow),
		locks:             make(map[uint64]LockRow),
		authorizedCallers: make(map[kernel.Principal]struct{}),
		adminSet:          adminSet,
		feeRecipient:      feeRecipient,
		feeBasisPoints:    feeBasisPoints,
		transfer:          transfer,
		metrics:           m,
	}
}

// SetNowFunc overrides the vault's time source for deterministic testing.
func (v *Vault) SetNowFunc(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock.SetNowFunc(now)
}

func (v *Vault) isAuthorized(caller kernel.Principal) bool {
	_, ok := v.authorizedCallers[caller]
	return ok
}

func (v *Vault) isAdmin(caller kernel.Principal) bool {
	_, ok := v.adminSet[caller]
	return ok
}

// Deposit credits the caller's own available balance. Callable directly by
// the owning user — unlike lock_funds/unlock_funds it is not gated by the
// authorized-caller set.
func (v *Vault) Deposit(ctx context.Context, caller kernel.Principal, token kernel.Token, amount uint64) (uint64, error) {
	if err := kernel.CheckCallerNotAnonymous(caller); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, kernel.NewError(kernel.InvalidInput, "deposit amount must be non-zero")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return 0, kernel.ErrPaused
	}

	key := balanceKey{owner: caller, token: token}
	row := v.balances[key]
	row.Owner, row.Token = caller, token
	row.Available += amount
	v.balances[key] = row

	txID := v.appendTxLocked(kernel.TxLock, 0, kernel.AnonymousPrincipal, caller, amount, token)
	if v.metrics != nil {
		v.metrics.ObserveDeposit(amount)
	}
	return txID, nil
}

// LockFunds reserves amount of the company's available balance against
// challengeId. See §4.2 for the full precondition list.
func (v *Vault) LockFunds(ctx context.Context, caller kernel.Principal, req LockRequest) error {
	if !v.isAuthorized(caller) {
		return kernel.ErrNotAuthorized
	}
	if req.Amount < kernel.MinLockAmount {
		return kernel.NewError(kernel.InvalidInput, "amount %d below minimum lock amount %d", req.Amount, kernel.MinLockAmount)
	}
	if req.Duration > kernel.MaxLockDuration {
		return kernel.NewError(kernel.InvalidInput, "duration %s exceeds maximum lock duration %s", req.Duration, kernel.MaxLockDuration)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return kernel.ErrPaused
	}
	if existing, ok := v.locks[req.ChallengeID]; ok && existing.Status == kernel.LockActive {
		return kernel.NewError(kernel.InvalidState, "challenge %d already has an active lock", req.ChallengeID)
	}

	key := balanceKey{owner: req.Company, token: req.Token}
	row := v.balances[key]
	if row.Available < req.Amount {
		return kernel.NewError(kernel.InsufficientFunds, "company %s has %d available, needs %d", req.Company, row.Available, req.Amount)
	}

	now := v.clock.Now()
	row.Owner, row.Token = req.Company, req.Token
	row.Available -= req.Amount
	row.Locked += req.Amount
	v.balances[key] = row

	v.locks[req.ChallengeID] = LockRow{
		ChallengeID: req.ChallengeID,
		Company:     req.Company,
		Amount:      req.Amount,
		Token:       req.Token,
		LockedAt:    now,
		ExpiresAt:   now.Add(req.Duration),
		Status:      kernel.LockActive,
	}

	v.appendTxLocked(kernel.TxLock, req.ChallengeID, req.Company, kernel.AnonymousPrincipal, req.Amount, req.Token)
	if v.metrics != nil {
		v.metrics.ObserveLock(req.Amount)
	}
	return nil
}

// UnlockFunds releases an Active lock, computing the platform fee split when
// the reason is a bounty payout, and is all-or-nothing per §5 Atomicity.
func (v *Vault) UnlockFunds(ctx context.Context, caller kernel.Principal, req UnlockRequest) (UnlockResult, error) {
	if !v.isAuthorized(caller) {
		return UnlockResult{}, kernel.ErrNotAuthorized
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return UnlockResult{}, kernel.ErrPaused
	}

	lock, ok := v.locks[req.ChallengeID]
	if !ok {
		return UnlockResult{}, kernel.ErrNoActiveLock
	}
	if lock.Status != kernel.LockActive {
		return UnlockResult{}, kernel.ErrLockNotActive
	}
	if req.Amount > lock.Amount {
		return UnlockResult{}, kernel.NewError(kernel.InvalidInput, "unlock amount %d exceeds lock amount %d", req.Amount, lock.Amount)
	}

	var fee, net uint64
	if req.Reason.Kind == kernel.ReasonBountyPayout {
		fee = req.Amount * v.feeBasisPoints / 10000
		net = req.Amount - fee
	} else {
		net = req.Amount
	}

	companyKey := balanceKey{owner: lock.Company, token: lock.Token}
	companyRow := v.balances[companyKey]
	companyRow.Locked -= req.Amount
	v.balances[companyKey] = companyRow

	recipientKey := balanceKey{owner: req.Recipient, token: lock.Token}
	recipientRow := v.balances[recipientKey]
	recipientRow.Owner, recipientRow.Token = req.Recipient, lock.Token
	recipientRow.Available += net
	v.balances[recipientKey] = recipientRow

	if fee > 0 {
		feeKey := balanceKey{owner: v.feeRecipient, token: lock.Token}
		feeRow := v.balances[feeKey]
		feeRow.Owner, feeRow.Token = v.feeRecipient, lock.Token
		feeRow.Available += fee
		v.balances[feeKey] = feeRow
	}

	lock.Status = kernel.LockReleased
	v.locks[req.ChallengeID] = lock

	txKind := kernel.TxPayout
	if req.Reason.Kind != kernel.ReasonBountyPayout {
		txKind = kernel.TxRefund
	}
	netTxID := v.appendTxLocked(txKind, req.ChallengeID, lock.Company, req.Recipient, net, lock.Token)
	var feeTxID uint64
	if fee > 0 {
		feeTxID = v.appendTxLocked(kernel.TxFee, req.ChallengeID, lock.Company, v.feeRecipient, fee, lock.Token)
	}

	if v.metrics != nil {
		v.metrics.ObserveUnlock(req.Reason.Kind, net, fee)
	}

	return UnlockResult{NetTransactionID: netTxID, FeeTransactionID: feeTxID, Net: net, Fee: fee}, nil
}

// appendTxLocked appends a completed transaction entry. Caller must hold mu.
func (v *Vault) appendTxLocked(kind kernel.TransactionKind, challengeID uint64, from, to kernel.Principal, amount uint64, token kernel.Token) uint64 {
	v.nextTxID++
	id := v.nextTxID
	v.txLog = append(v.txLog, Transaction{
		ID:          id,
		Kind:        kind,
		ChallengeID: challengeID,
		From:        from,
		To:          to,
		Amount:      amount,
		Token:       token,
		Timestamp:   v.clock.Now(),
		Status:      kernel.TxCompleted,
	})
	return id
}

// GetBalance returns the row for (user, token), or a zero row if absent.
func (v *Vault) GetBalance(user kernel.Principal, token kernel.Token) BalanceRow {
	v.mu.Lock()
	defer v.mu.Unlock()
	row, ok := v.balances[balanceKey{owner: user, token: token}]
	if !ok {
		return BalanceRow{Owner: user, Token: token}
	}
	return row.Clone()
}

// GetLockInfo returns the lock row for a challenge, if any.
func (v *Vault) GetLockInfo(challengeID uint64) (LockRow, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	lock, ok := v.locks[challengeID]
	return lock.Clone(), ok
}

// GetTransactionHistory returns a user's transactions newest-first, paginated.
func (v *Vault) GetTransactionHistory(user kernel.Principal, offset, limit uint64) (kernel.ApiResponse[Transaction], error) {
	if err := kernel.ValidatePagination(offset, limit); err != nil {
		return kernel.ApiResponse[Transaction]{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	matched := make([]Transaction, 0, len(v.txLog))
	for i := len(v.txLog) - 1; i >= 0; i-- {
		tx := v.txLog[i]
		if tx.From == user || tx.To == user {
			matched = append(matched, tx)
		}
		if uint64(len(matched)) >= kernel.MaxTransactionHistory {
			break
		}
	}
	return kernel.Paginate(matched, offset, limit), nil
}

// GetVaultStats aggregates across all live rows.
func (v *Vault) GetVaultStats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := Stats{
		TotalBalanceRows:  uint64(len(v.balances)),
		TotalTransactions: uint64(len(v.txLog)),
		Paused:            v.paused,
	}
	for _, row := range v.balances {
		stats.TotalLockedAcross += row.Locked
	}
	for _, lock := range v.locks {
		if lock.Status == kernel.LockActive {
			stats.ActiveLocks++
		}
	}
	return stats
}

// AddAuthorizedCaller grants a principal the right to invoke lock_funds and
// unlock_funds. Restricted to the admin set.
func (v *Vault) AddAuthorizedCaller(admin, caller kernel.Principal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isAdmin(admin) {
		return kernel.NewError(kernel.PermissionDenied, "caller %s is not an admin", admin)
	}
	v.authorizedCallers[caller] = struct{}{}
	return nil
}

// GetAuthorizedCallers returns the current authorized-caller set.
func (v *Vault) GetAuthorizedCallers() []kernel.Principal {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]kernel.Principal, 0, len(v.authorizedCallers))
	for p := range v.authorizedCallers {
		out = append(out, p)
	}
	return out
}

// SetPauseStatus flips the pause flag. Restricted to the admin set. While
// paused, deposit/lock_funds/unlock_funds reject with InvalidState("paused")
// and queries are unaffected.
func (v *Vault) SetPauseStatus(admin kernel.Principal, paused bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isAdmin(admin) {
		return kernel.NewError(kernel.PermissionDenied, "caller %s is not an admin", admin)
	}
	v.paused = paused
	return nil
}

// IsPaused reports the current pause flag.
func (v *Vault) IsPaused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// SetPlatformFeeRecipient changes the principal credited with platform fees.
// Restricted to the admin set.
func (v *Vault) SetPlatformFeeRecipient(admin, recipient kernel.Principal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.isAdmin(admin) {
		return kernel.NewError(kernel.PermissionDenied, "caller %s is not an admin", admin)
	}
	v.feeRecipient = recipient
	return nil
}
