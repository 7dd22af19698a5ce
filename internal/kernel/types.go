package kernel

import (
	"encoding/hex"
	"fmt"
)

// Principal is an opaque identity byte-string. The all-zero value is the
// anonymous sentinel and is rejected on every mutating entry point.
type Principal [20]byte

// AnonymousPrincipal is the zero-value sentinel.
var AnonymousPrincipal Principal

// IsAnonymous reports whether p is the zero-value sentinel.
func (p Principal) IsAnonymous() bool {
	return p == AnonymousPrincipal
}

// String renders the principal as a 0x-prefixed hex string. Human-facing
// surfaces (the HTTP gateway, bountyctl) prefer the bech32 form from
// internal/identity; this is the low-level debug/log rendering.
func (p Principal) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

// ParsePrincipal decodes a 0x-prefixed or bare hex string into a Principal.
func ParsePrincipal(s string) (Principal, error) {
	trimmed := s
	if len(trimmed) >= 2 && trimmed[0] == '0' && (trimmed[1] == 'x' || trimmed[1] == 'X') {
		trimmed = trimmed[2:]
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Principal{}, fmt.Errorf("kernel: invalid principal encoding: %w", err)
	}
	if len(raw) != 20 {
		return Principal{}, fmt.Errorf("kernel: principal must be 20 bytes, got %d", len(raw))
	}
	var p Principal
	copy(p[:], raw)
	return p, nil
}

// TokenKind discriminates the token sum type.
type TokenKind uint8

const (
	TokenNative TokenKind = iota
	TokenFungible
)

func (k TokenKind) String() string {
	switch k {
	case TokenNative:
		return "native"
	case TokenFungible:
		return "fungible"
	default:
		return "unknown"
	}
}

// Token is the sum type {Native} | {Fungible(issuer)}. Two tokens compare
// equal iff their discriminators and any inner issuer principal match
// exactly.
type Token struct {
	Kind   TokenKind
	Issuer Principal
}

// NativeToken returns the platform-native token discriminator.
func NativeToken() Token {
	return Token{Kind: TokenNative}
}

// FungibleToken returns a fungible-token discriminator for the given issuer.
func FungibleToken(issuer Principal) Token {
	return Token{Kind: TokenFungible, Issuer: issuer}
}

// Equal reports whether two tokens denote the same asset.
func (t Token) Equal(other Token) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind == TokenFungible {
		return t.Issuer == other.Issuer
	}
	return true
}

func (t Token) String() string {
	if t.Kind == TokenFungible {
		return fmt.Sprintf("fungible:%s", t.Issuer)
	}
	return "native"
}

// ChallengeStatus is the challenge lifecycle state.
type ChallengeStatus uint8

const (
	ChallengeCreated ChallengeStatus = iota
	ChallengeActive
	ChallengeCompleted
	ChallengeExpired
	ChallengeCancelled
)

func (s ChallengeStatus) String() string {
	switch s {
	case ChallengeCreated:
		return "Created"
	case ChallengeActive:
		return "Active"
	case ChallengeCompleted:
		return "Completed"
	case ChallengeExpired:
		return "Expired"
	case ChallengeCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// LockStatus is the vault lock row status.
type LockStatus uint8

const (
	LockActive LockStatus = iota
	LockReleased
	LockExpired
)

func (s LockStatus) String() string {
	switch s {
	case LockActive:
		return "Active"
	case LockReleased:
		return "Released"
	case LockExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// TransactionKind classifies a vault transaction log entry.
type TransactionKind uint8

const (
	TxLock TransactionKind = iota
	TxUnlock
	TxPayout
	TxRefund
	TxFee
)

func (k TransactionKind) String() string {
	switch k {
	case TxLock:
		return "Lock"
	case TxUnlock:
		return "Unlock"
	case TxPayout:
		return "Payout"
	case TxRefund:
		return "Refund"
	case TxFee:
		return "Fee"
	default:
		return "Unknown"
	}
}

// TransactionStatus is the lifecycle of an append-only transaction record.
type TransactionStatus uint8

const (
	TxPending TransactionStatus = iota
	TxCompleted
	TxFailed
	TxCancelled
)

func (s TransactionStatus) String() string {
	switch s {
	case TxPending:
		return "Pending"
	case TxCompleted:
		return "Completed"
	case TxFailed:
		return "Failed"
	case TxCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Decision is the adjudication engine's verdict on an attack attempt.
type Decision uint8

const (
	DecisionPending Decision = iota
	DecisionValid
	DecisionInvalid
	DecisionDisputed
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "Pending"
	case DecisionValid:
		return "Valid"
	case DecisionInvalid:
		return "Invalid"
	case DecisionDisputed:
		return "Disputed"
	default:
		return "Unknown"
	}
}

// DisputeStatus is the lifecycle of a dispute case.
type DisputeStatus uint8

const (
	DisputeOpen DisputeStatus = iota
	DisputeUnderReview
	DisputeResolved
	DisputeRejected
)

func (s DisputeStatus) String() string {
	switch s {
	case DisputeOpen:
		return "Open"
	case DisputeUnderReview:
		return "UnderReview"
	case DisputeResolved:
		return "Resolved"
	case DisputeRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// UnlockReasonKind discriminates why funds are being released from a lock.
type UnlockReasonKind uint8

const (
	ReasonBountyPayout UnlockReasonKind = iota
	ReasonChallengeExpired
	ReasonChallengeCancelled
	ReasonAdminOverride
)

// UnlockReason is the tagged reason passed to unlock_funds.
type UnlockReason struct {
	Kind   UnlockReasonKind
	Winner Principal // set when Kind == ReasonBountyPayout
	Note   string    // set when Kind == ReasonAdminOverride
}

func (r UnlockReason) String() string {
	switch r.Kind {
	case ReasonBountyPayout:
		return fmt.Sprintf("BountyPayout(%s)", r.Winner)
	case ReasonChallengeExpired:
		return "ChallengeExpired"
	case ReasonChallengeCancelled:
		return "ChallengeCancelled"
	case ReasonAdminOverride:
		return fmt.Sprintf("AdminOverride(%s)", r.Note)
	default:
		return "Unknown"
	}
}

// UserRole classifies a reputation-observer profile.
type UserRole uint8

const (
	RoleCompany UserRole = iota
	RoleHacker
	RoleAdmin
)

func (r UserRole) String() string {
	switch r {
	case RoleCompany:
		return "Company"
	case RoleHacker:
		return "Hacker"
	case RoleAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}
