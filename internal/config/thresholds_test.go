package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadThresholdsEmptyPathReturnsDefaults(t *testing.T) {
	got, err := LoadThresholds("")
	require.NoError(t, err)
	require.Equal(t, DefaultThresholds(), got)
}

func TestLoadThresholdsOverridesSomeFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bounty.toml")
	contents := "serial_hacker_attacks = 3\nplatform_fee_basis_points = 300\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	got, err := LoadThresholds(path)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.SerialHackerAttacks)
	require.Equal(t, uint64(300), got.PlatformFeeBasisPoints)

	defaults := DefaultThresholds()
	require.Equal(t, defaults.ActiveContributorCount, got.ActiveContributorCount, "an unset field should keep its default")
}

func TestLoadThresholdsMissingFileErrors(t *testing.T) {
	_, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
