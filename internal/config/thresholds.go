package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Thresholds holds the achievement and fee-schedule overrides an operator
// may supply in a static bounty.toml file, layered on top of the §6
// constants table defaults.
type Thresholds struct {
	SerialHackerAttacks      uint64 `toml:"serial_hacker_attacks"`
	ActiveContributorCount   uint64 `toml:"active_contributor_count"`
	GenerousCompanyThreshold uint64 `toml:"generous_company_threshold"`
	PlatformFeeBasisPoints   uint64 `toml:"platform_fee_basis_points"`
}

// DefaultThresholds mirrors the exact values named in spec §4.5/§6.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SerialHackerAttacks:      5,
		ActiveContributorCount:   5,
		GenerousCompanyThreshold: 10 * 100_000_000,
		PlatformFeeBasisPoints:   250,
	}
}

// LoadThresholds reads a bounty.toml override file. An empty path is not an
// error; DefaultThresholds is used instead.
func LoadThresholds(path string) (Thresholds, error) {
	out := DefaultThresholds()
	if path == "" {
		return out, nil
	}
	meta, err := toml.DecodeFile(path, &out)
	if err != nil {
		return Thresholds{}, fmt.Errorf("config: decode thresholds %s: %w", path, err)
	}
	_ = meta
	return out, nil
}
