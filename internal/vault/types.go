package vault

import (
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// balanceKey indexes balance rows by owner and token.
type balanceKey struct {
	owner kernel.Principal
	token kernel.Token
}

// BalanceRow is the per-(owner, token) custody record. Invariant B1: Total is
// exact; B2: Locked and Available are never negative; B3: a row is created
// on first credit and never physically deleted.
type BalanceRow struct {
	Owner     kernel.Principal `json:"owner"`
	Token     kernel.Token     `json:"token"`
	Available uint64           `json:"available"`
	Locked    uint64           `json:"locked"`
}

// Total returns the derived available+locked sum.
func (b BalanceRow) Total() uint64 {
	return b.Available + b.Locked
}

// Clone returns a value copy; BalanceRow has no reference fields but the
// method is kept for symmetry with the other row types and to guard against
// future fields being added carelessly.
func (b BalanceRow) Clone() BalanceRow {
	return b
}

// LockRow is a reservation of a company's funds against a specific
// challenge. Invariant L1: at most one Active lock per challenge id; L2:
// ExpiresAt > LockedAt; L3: the sum of Active locks for (company, token)
// equals balance(company, token).Locked.
type LockRow struct {
	ChallengeID uint64            `json:"challengeId"`
	Company     kernel.Principal  `json:"company"`
	Amount      uint64            `json:"amount"`
	Token       kernel.Token      `json:"token"`
	LockedAt    time.Time         `json:"lockedAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Status      kernel.LockStatus `json:"status"`
}

func (l LockRow) Clone() LockRow {
	return l
}

// Transaction is an append-only log entry. ChallengeID is zero for
// non-challenge deposits.
type Transaction struct {
	ID          uint64                  `json:"id"`
	Kind        kernel.TransactionKind  `json:"kind"`
	ChallengeID uint64                  `json:"challengeId"`
	From        kernel.Principal        `json:"from"`
	To          kernel.Principal        `json:"to"`
	Amount      uint64                  `json:"amount"`
	Token       kernel.Token            `json:"token"`
	Timestamp   time.Time               `json:"timestamp"`
	Status      kernel.TransactionStatus `json:"status"`
}

func (t Transaction) Clone() Transaction {
	return t
}

// Stats aggregates across all live rows for get_vault_stats.
type Stats struct {
	TotalBalanceRows  uint64 `json:"totalBalanceRows"`
	TotalLockedAcross uint64 `json:"totalLockedAcross"`
	ActiveLocks       uint64 `json:"activeLocks"`
	TotalTransactions uint64 `json:"totalTransactions"`
	Paused            bool   `json:"paused"`
}

// LockRequest is the argument shape for lock_funds.
type LockRequest struct {
	ChallengeID uint64
	Company     kernel.Principal
	Amount      uint64
	Token       kernel.Token
	Duration    time.Duration
}

// UnlockRequest is the argument shape for unlock_funds.
type UnlockRequest struct {
	ChallengeID uint64
	Recipient   kernel.Principal
	Amount      uint64
	Reason      kernel.UnlockReason
}

// UnlockResult reports the computed fee split for a completed unlock.
type UnlockResult struct {
	NetTransactionID uint64
	FeeTransactionID uint64 // zero if no fee was charged
	Net              uint64
	Fee              uint64
}
