package reputation

import (
	"time"

	"github.com/bountyvault/core/internal/kernel"
)

// Profile is a user's accumulated reputation and activity record.
type Profile struct {
	Principal         kernel.Principal    `json:"principal"`
	Role              kernel.UserRole     `json:"role"`
	Reputation        int64               `json:"reputation"`
	TotalEarned       uint64              `json:"totalEarned"`
	TotalOffered      uint64              `json:"totalOffered"`
	SuccessfulAttacks uint64              `json:"successfulAttacks"`
	CreatedChallenges uint64              `json:"createdChallenges"`
	JoinedAt          time.Time           `json:"joinedAt"`
	LastActive        time.Time           `json:"lastActive"`
	Achievements      map[string]time.Time `json:"achievements"`
	ChallengeHistory  []uint64            `json:"challengeHistory"`
}

func (p Profile) Clone() Profile {
	out := p
	out.Achievements = make(map[string]time.Time, len(p.Achievements))
	for k, v := range p.Achievements {
		out.Achievements[k] = v
	}
	out.ChallengeHistory = append([]uint64(nil), p.ChallengeHistory...)
	return out
}

// DefaultReputation is the starting reputation score for a newly created profile.
const DefaultReputation = 100

// Achievement names, exact per §4.5.
const (
	AchievementFirstBlood        = "FirstBlood"
	AchievementSerialHacker      = "SerialHacker"
	AchievementActiveContributor = "ActiveContributor"
	AchievementGenerousCompany   = "GenerousCompany"
	AchievementTopEarner         = "TopEarner"   // defined, not automatically granted
	AchievementQuickSolver       = "QuickSolver" // defined, not automatically granted
)

// GenerousCompanyThreshold is 10 ICP-equivalent base units (10 * 10^8), the
// spec §4.5 default. An operator override arrives via Thresholds below.
const GenerousCompanyThreshold = 10 * 100_000_000

// Thresholds parameterizes the achievement grant rules so
// internal/config's bounty.toml overrides (DefaultThresholds otherwise)
// reach the engine instead of only being logged at startup.
type Thresholds struct {
	SerialHackerAttacks      uint64
	ActiveContributorCount   uint64
	GenerousCompanyThreshold uint64
}

// DefaultThresholds mirrors the exact values named in spec §4.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SerialHackerAttacks:      5,
		ActiveContributorCount:   5,
		GenerousCompanyThreshold: GenerousCompanyThreshold,
	}
}

// LeaderboardEntry is one row of a reputation-sorted leaderboard view.
type LeaderboardEntry struct {
	Principal  kernel.Principal `json:"principal"`
	Reputation int64            `json:"reputation"`
}

// PlatformCounters are cross-cutting totals the observer maintains.
type PlatformCounters struct {
	TotalUsers             uint64 `json:"totalUsers"`
	TotalChallengesCreated uint64 `json:"totalChallengesCreated"`
	TotalSuccessfulAttacks uint64 `json:"totalSuccessfulAttacks"`
}
