// Package reputation implements the reputation observer (§4.5): a pure
// downstream consumer of registration, creation, and settlement events that
// accumulates user profiles, grants achievements, and serves leaderboards.
package reputation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bountyvault/core/internal/kernel"
	"github.com/bountyvault/core/internal/observability/metrics"
)

// Engine owns profiles, display names, achievements, and platform counters
// exclusively (§3 Ownership).
type Engine struct {
	mu sync.Mutex

	clock *kernel.Clock

	profiles   map[kernel.Principal]Profile
	counters   PlatformCounters
	thresholds Thresholds

	metrics *metrics.ReputationCollector
}

// New constructs an Engine using the spec-default achievement thresholds.
func New(m *metrics.ReputationCollector) *Engine {
	return NewWithThresholds(DefaultThresholds(), m)
}

// NewWithThresholds is New but with an operator-supplied threshold override
// (internal/config's bounty.toml Thresholds).
func NewWithThresholds(thresholds Thresholds, m *metrics.ReputationCollector) *Engine {
	return &Engine{
		clock:      kernel.NewClock(),
		profiles:   make(map[kernel.Principal]Profile),
		thresholds: thresholds,
		metrics:    m,
	}
}

// SetNowFunc overrides the engine's time source for deterministic testing.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.SetNowFunc(now)
}

// getOrCreateLocked returns the caller's profile, creating one with default
// reputation if missing. Caller must hold mu.
func (e *Engine) getOrCreateLocked(principal kernel.Principal, role kernel.UserRole, now time.Time) Profile {
	profile, ok := e.profiles[principal]
	if !ok {
		profile = Profile{
			Principal:    principal,
			Role:         role,
			Reputation:   DefaultReputation,
			JoinedAt:     now,
			Achievements: make(map[string]time.Time),
		}
		e.counters.TotalUsers++
	}
	profile.LastActive = now
	return profile
}

func (e *Engine) grantLocked(profile *Profile, achievement string, now time.Time) {
	if profile.Achievements == nil {
		profile.Achievements = make(map[string]time.Time)
	}
	if _, already := profile.Achievements[achievement]; already {
		return
	}
	profile.Achievements[achievement] = now
	if e.metrics != nil {
		e.metrics.ObserveAchievement(achievement)
	}
}

// RecordUserRegistration creates or refreshes a profile for caller with role.
func (e *Engine) RecordUserRegistration(ctx context.Context, caller kernel.Principal, role kernel.UserRole) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	profile := e.getOrCreateLocked(caller, role, now)
	profile.Role = role
	e.profiles[caller] = profile
	if e.metrics != nil {
		e.metrics.SetProfileCount(len(e.profiles))
	}
	return nil
}

// RecordChallengeCreated bumps a company's created-challenge counter and
// grants ActiveContributor/GenerousCompany where earned.
func (e *Engine) RecordChallengeCreated(ctx context.Context, company kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	profile := e.getOrCreateLocked(company, kernel.RoleCompany, now)
	profile.CreatedChallenges++
	profile.TotalOffered += bounty
	profile.ChallengeHistory = append(profile.ChallengeHistory, challengeID)

	if profile.CreatedChallenges == e.thresholds.ActiveContributorCount {
		e.grantLocked(&profile, AchievementActiveContributor, now)
	}
	if bounty >= e.thresholds.GenerousCompanyThreshold {
		e.grantLocked(&profile, AchievementGenerousCompany, now)
	}

	e.profiles[company] = profile
	e.counters.TotalChallengesCreated++
	if e.metrics != nil {
		e.metrics.SetProfileCount(len(e.profiles))
	}
	return nil
}

// RecordSuccessfulAttack bumps a hacker's successful-attack counter and
// grants FirstBlood/SerialHacker where earned. This call is intentionally
// NOT idempotent: repeated calls with identical arguments increment
// counters again each time. Callers are responsible for deduplication.
func (e *Engine) RecordSuccessfulAttack(ctx context.Context, hacker kernel.Principal, challengeID uint64, bounty uint64, token kernel.Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	profile := e.getOrCreateLocked(hacker, kernel.RoleHacker, now)
	profile.SuccessfulAttacks++
	profile.TotalEarned += bounty
	profile.ChallengeHistory = append(profile.ChallengeHistory, challengeID)

	if profile.SuccessfulAttacks == 1 {
		e.grantLocked(&profile, AchievementFirstBlood, now)
	}
	if profile.SuccessfulAttacks == e.thresholds.SerialHackerAttacks {
		e.grantLocked(&profile, AchievementSerialHacker, now)
	}

	e.profiles[hacker] = profile
	e.counters.TotalSuccessfulAttacks++
	if e.metrics != nil {
		e.metrics.SetProfileCount(len(e.profiles))
	}
	return nil
}

// GetProfile returns a clone of a user's profile, or NotFound.
func (e *Engine) GetProfile(principal kernel.Principal) (Profile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[principal]
	if !ok {
		return Profile{}, kernel.NewError(kernel.NotFound, "no profile for %s", principal)
	}
	return p.Clone(), nil
}

// Leaderboard returns up to MaxPaginationLimit profiles sorted by
// reputation descending.
func (e *Engine) Leaderboard(limit uint64) []LeaderboardEntry {
	if limit == 0 || limit > kernel.MaxPaginationLimit {
		limit = kernel.MaxPaginationLimit
	}

	e.mu.Lock()
	entries := make([]LeaderboardEntry, 0, len(e.profiles))
	for _, p := range e.profiles {
		entries = append(entries, LeaderboardEntry{Principal: p.Principal, Reputation: p.Reputation})
	}
	e.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Reputation != entries[j].Reputation {
			return entries[i].Reputation > entries[j].Reputation
		}
		return entries[i].Principal.String() < entries[j].Principal.String()
	})
	if uint64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries
}

// GetPlatformCounters returns a snapshot of the cross-cutting totals.
func (e *Engine) GetPlatformCounters() PlatformCounters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}
