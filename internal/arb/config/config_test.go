package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassesValidation(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidate_RejectsNegativeProfitMargin(t *testing.T) {
	c := Defaults()
	c.MinProfitMargin = -0.01
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsCapitalFractionOutOfRange(t *testing.T) {
	c := Defaults()
	c.MaxCapitalPerTrade = 1.5
	assert.Error(t, c.Validate())
}

func TestValidate_RejectsEnabledVenueWithoutRPS(t *testing.T) {
	c := Defaults()
	c.Venues = map[string]VenueConfig{"kraken": {Enabled: true, RPS: 0}}
	assert.Error(t, c.Validate())
}

func TestLoad_AppliesYAMLOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "min_profit_margin: 0.01\nhttp_addr: \":9999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.MinProfitMargin)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 0.1, cfg.MaxCapitalPerTrade)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().HTTPAddr, cfg.HTTPAddr)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("MIN_PROFIT_MARGIN", "0.02")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 0.02, cfg.MinProfitMargin)
}

func TestFeeFor_UnknownVenueReturnsZero(t *testing.T) {
	c := Defaults()
	assert.Equal(t, 0.0, c.FeeFor("nonexistent"))
}

func TestFeeFor_KnownVenue(t *testing.T) {
	c := Defaults()
	c.Venues = map[string]VenueConfig{"kraken": {Fees: FeeSchedule{Taker: 0.0026}}}
	assert.Equal(t, 0.0026, c.FeeFor("kraken"))
}
