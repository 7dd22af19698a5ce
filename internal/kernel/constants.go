package kernel

import "time"

// Compatibility-significant constants. Values and units match the external
// contract exactly; changing any of these changes on-wire behavior.
const (
	MaxWasmSize             = 2 * 1024 * 1024
	MaxPaginationLimit      = 100
	MaxDisplayNameLength    = 50
	MaxDescriptionLength    = 1000
	MaxInterfaceDescription = 10000

	MinChallengeDuration = 24 * time.Hour
	MaxChallengeDuration = 365 * 24 * time.Hour

	MaxTransactionHistory = 1000
	MaxBalanceHistory     = 1000

	MinLockAmount   = 1_000_000
	MaxLockDuration = 30 * 24 * time.Hour

	PlatformFeeBasisPoints = 250
	AttackThresholdPercent = 10

	BalanceCheckInterval = 60 * time.Second

	MaxChallengesPerUser = 10
)
