package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		LLM: LLMConfig{Provider: "gemini", GeminiAPIKey: "key"},
		Market: MarketConfig{
			Timezone: "Asia/Kolkata",
			PreOpen:  "09:00",
			Open:     "09:15",
			Close:    "15:30",
		},
		Gate: GateConfig{
			MaxPositionPct:   20,
			MaxOpenPositions: 5,
			MaxADVPct:        1,
			MinRewardRisk:    2,
			RoundTripCost:    40,
			FrictionMultiple: 10,
			WashoutDays:      3,
			MinHoldHours:     48,
		},
		Verification: VerificationConfig{NeutralBandPct: 0.5, MatchAcceptScore: 0.7},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "test-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 20.0, cfg.Gate.MaxPositionPct)
	assert.Equal(t, 5, cfg.Gate.MaxOpenPositions)
	assert.Equal(t, 2.0, cfg.Gate.MinRewardRisk)
	assert.Equal(t, 48, cfg.Gate.MinHoldHours)
	assert.Equal(t, 3, cfg.Gate.WashoutDays)
	assert.Equal(t, 60, cfg.Verification.MinAgeMinutes)
	assert.Equal(t, 0.5, cfg.Verification.NeutralBandPct)
	assert.Equal(t, "Asia/Kolkata", cfg.Market.Timezone)
	assert.Equal(t, 2*time.Minute, cfg.Prices.CacheTTL)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "gemini")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_AnthropicProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.AnthropicAPIKey)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GATE_MAX_OPEN_POSITIONS", "3")
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("ADMIN_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Gate.MaxOpenPositions)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "secret", cfg.Server.AdminAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "production without admin key", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "ADMIN_API_KEY"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "openai" }, wantErr: "unsupported llm provider"},
		{name: "claude without key", mutate: func(c *Config) { c.LLM.Provider = "claude" }, wantErr: "ANTHROPIC_API_KEY"},
		{name: "position pct zero", mutate: func(c *Config) { c.Gate.MaxPositionPct = 0 }, wantErr: "max_position_pct"},
		{name: "position pct above 100", mutate: func(c *Config) { c.Gate.MaxPositionPct = 120 }, wantErr: "max_position_pct"},
		{name: "no open positions", mutate: func(c *Config) { c.Gate.MaxOpenPositions = 0 }, wantErr: "max_open_positions"},
		{name: "adv pct", mutate: func(c *Config) { c.Gate.MaxADVPct = -1 }, wantErr: "max_adv_pct"},
		{name: "reward risk", mutate: func(c *Config) { c.Gate.MinRewardRisk = 0 }, wantErr: "min_reward_risk"},
		{name: "negative cost", mutate: func(c *Config) { c.Gate.RoundTripCost = -5 }, wantErr: "round_trip_cost"},
		{name: "negative hold", mutate: func(c *Config) { c.Gate.MinHoldHours = -1 }, wantErr: "min_hold_hours"},
		{name: "neutral band", mutate: func(c *Config) { c.Verification.NeutralBandPct = -0.1 }, wantErr: "neutral_band_pct"},
		{name: "match score", mutate: func(c *Config) { c.Verification.MatchAcceptScore = 1.5 }, wantErr: "match_accept_score"},
		{name: "timezone", mutate: func(c *Config) { c.Market.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "session time", mutate: func(c *Config) { c.Market.Open = "9am" }, wantErr: "session time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "catalyst", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=catalyst sslmode=disable", d.DSN())

	d.DatabaseURL = "postgres://u:p@db/catalyst"
	assert.Equal(t, "postgres://u:p@db/catalyst", d.DSN())
}
