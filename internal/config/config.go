package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment  string             `mapstructure:"environment"`
	LogLevel     string             `mapstructure:"log_level"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Prices       PricesConfig       `mapstructure:"prices"`
	Market       MarketConfig       `mapstructure:"market"`
	Gate         GateConfig         `mapstructure:"gate"`
	Verification VerificationConfig `mapstructure:"verification"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminAPIKey guards the endpoints that change state. Empty disables the check outside production.
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LLMConfig selects the language model provider used by the classifier.
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	GeminiAPIKey     string        `mapstructure:"gemini_api_key" json:"-" yaml:"-"`
	GeminiModel      string        `mapstructure:"gemini_model"`
	AnthropicAPIKey  string        `mapstructure:"anthropic_api_key" json:"-" yaml:"-"`
	AnthropicModel   string        `mapstructure:"anthropic_model"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float32       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	RequestInterval  time.Duration `mapstructure:"request_interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type PricesConfig struct {
	YahooBaseURL         string        `mapstructure:"yahoo_base_url"`
	GoogleFinanceBaseURL string        `mapstructure:"google_finance_base_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRetries           int           `mapstructure:"max_retries"`
	InitialBackoff       time.Duration `mapstructure:"initial_backoff"`
	RequestInterval      time.Duration `mapstructure:"request_interval"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	BlacklistTTL         time.Duration `mapstructure:"blacklist_ttl"`
}

// MarketConfig describes the local exchange session used for market-mode checks.
type MarketConfig struct {
	Timezone     string   `mapstructure:"timezone"`
	PreOpen      string   `mapstructure:"pre_open"`
	Open         string   `mapstructure:"open"`
	Close        string   `mapstructure:"close"`
	Holidays     []string `mapstructure:"holidays"`
	Currency     string   `mapstructure:"currency"`
	LocalSuffix  string   `mapstructure:"local_suffix"`
	GlobalTicker string   `mapstructure:"global_ticker"`
}

// GateConfig holds every numeric threshold the portfolio gate enforces.
type GateConfig struct {
	MaxPositionPct        float64 `mapstructure:"max_position_pct"`
	MaxOpenPositions      int     `mapstructure:"max_open_positions"`
	MaxADVPct             float64 `mapstructure:"max_adv_pct"`
	MinRewardRisk         float64 `mapstructure:"min_reward_risk"`
	RoundTripCost         float64 `mapstructure:"round_trip_cost"`
	FrictionMultiple      float64 `mapstructure:"friction_multiple"`
	WashoutDays           int     `mapstructure:"washout_days"`
	MinHoldHours          int     `mapstructure:"min_hold_hours"`
	MaxHoldHours          int     `mapstructure:"max_hold_hours"`
	Phase1ATRMultiple     float64 `mapstructure:"phase1_atr_multiple"`
	Phase2GainPct         float64 `mapstructure:"phase2_gain_pct"`
	Phase2MAPeriod        int     `mapstructure:"phase2_ma_period"`
	Phase3RSI             float64 `mapstructure:"phase3_rsi"`
	Phase3ATRMultiple     float64 `mapstructure:"phase3_atr_multiple"`
	RSIPeriod             int     `mapstructure:"rsi_period"`
	SignalMaxAgeHours     int     `mapstructure:"signal_max_age_hours"`
	SuggestionReviewHours int     `mapstructure:"suggestion_review_hours"`
}

type VerificationConfig struct {
	LogPath           string        `mapstructure:"log_path"`
	MinAgeMinutes     int           `mapstructure:"min_age_minutes"`
	NeutralBandPct    float64       `mapstructure:"neutral_band_pct"`
	RequestDelay      time.Duration `mapstructure:"request_delay"`
	MatchAcceptScore  float64       `mapstructure:"match_accept_score"`
	MatchWindowDays   int           `mapstructure:"match_window_days"`
	MatchPriceTolPct  float64       `mapstructure:"match_price_tolerance_pct"`
	NotifyPassSummary bool          `mapstructure:"notify_pass_summary"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPLogs       bool   `mapstructure:"otlp_logs"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Load reads config.yaml (if any), applies defaults and environment overrides, and validates.
// A missing API key for the selected LLM provider is fatal.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"llm.gemini_api_key":    "GEMINI_API_KEY",
		"llm.anthropic_api_key": "ANTHROPIC_API_KEY",
		"telegram.bot_token":    "TELEGRAM_BOT_TOKEN",
		"telegram.chat_id":      "TELEGRAM_CHAT_ID",
		"database.database_url": "DATABASE_URL",
		"server.admin_api_key":  "ADMIN_API_KEY",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)
	config.LLM.Provider = strings.ToLower(config.LLM.Provider)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks provider credentials and policy thresholds.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY environment variable is required for the gemini provider")
		}
	case "anthropic", "claude":
		if c.LLM.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY environment variable is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}

	if c.Environment == "production" && c.Server.AdminAPIKey == "" {
		return errors.New("ADMIN_API_KEY environment variable is required in production")
	}

	g := c.Gate
	if g.MaxPositionPct <= 0 || g.MaxPositionPct > 100 {
		return fmt.Errorf("gate.max_position_pct must be in (0, 100], got %v", g.MaxPositionPct)
	}
	if g.MaxOpenPositions <= 0 {
		return fmt.Errorf("gate.max_open_positions must be positive, got %d", g.MaxOpenPositions)
	}
	if g.MaxADVPct <= 0 || g.MaxADVPct > 100 {
		return fmt.Errorf("gate.max_adv_pct must be in (0, 100], got %v", g.MaxADVPct)
	}
	if g.MinRewardRisk <= 0 {
		return fmt.Errorf("gate.min_reward_risk must be positive, got %v", g.MinRewardRisk)
	}
	if g.RoundTripCost < 0 || g.FrictionMultiple < 0 {
		return errors.New("gate.round_trip_cost and gate.friction_multiple must not be negative")
	}
	if g.MinHoldHours < 0 || g.WashoutDays < 0 {
		return errors.New("gate.min_hold_hours and gate.washout_days must not be negative")
	}

	if c.Verification.NeutralBandPct < 0 {
		return fmt.Errorf("verification.neutral_band_pct must not be negative, got %v", c.Verification.NeutralBandPct)
	}
	if c.Verification.MatchAcceptScore <= 0 || c.Verification.MatchAcceptScore > 1 {
		return fmt.Errorf("verification.match_accept_score must be in (0, 1], got %v", c.Verification.MatchAcceptScore)
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market timezone %q: %w", c.Market.Timezone, err)
	}
	for _, clock := range []string{c.Market.PreOpen, c.Market.Open, c.Market.Close} {
		if _, err := time.Parse("15:04", clock); err != nil {
			return fmt.Errorf("invalid market session time %q: %w", clock, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.admin_api_key", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "catalyst")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-5")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", "45s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.initial_backoff", "2s")
	v.SetDefault("llm.request_interval", "1s")
	v.SetDefault("llm.failure_threshold", 5)

	v.SetDefault("prices.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.google_finance_base_url", "https://www.google.com/finance")
	v.SetDefault("prices.timeout", "10s")
	v.SetDefault("prices.max_retries", 2)
	v.SetDefault("prices.initial_backoff", "500ms")
	v.SetDefault("prices.request_interval", "500ms")
	v.SetDefault("prices.cache_ttl", "2m")
	v.SetDefault("prices.blacklist_ttl", "6h")

	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.pre_open", "09:00")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.holidays", []string{})
	v.SetDefault("market.currency", "INR")
	v.SetDefault("market.local_suffix", ".NS")
	v.SetDefault("market.global_ticker", "")

	v.SetDefault("gate.max_position_pct", 20.0)
	v.SetDefault("gate.max_open_positions", 5)
	v.SetDefault("gate.max_adv_pct", 1.0)
	v.SetDefault("gate.min_reward_risk", 2.0)
	v.SetDefault("gate.round_trip_cost", 40.0)
	v.SetDefault("gate.friction_multiple", 10.0)
	v.SetDefault("gate.washout_days", 3)
	v.SetDefault("gate.min_hold_hours", 48)
	v.SetDefault("gate.max_hold_hours", 240)
	v.SetDefault("gate.phase1_atr_multiple", 3.0)
	v.SetDefault("gate.phase2_gain_pct", 3.0)
	v.SetDefault("gate.phase2_ma_period", 20)
	v.SetDefault("gate.phase3_rsi", 75.0)
	v.SetDefault("gate.phase3_atr_multiple", 1.5)
	v.SetDefault("gate.rsi_period", 14)
	v.SetDefault("gate.signal_max_age_hours", 72)
	v.SetDefault("gate.suggestion_review_hours", 24)

	v.SetDefault("verification.log_path", "data/opportunity_log.jsonl")
	v.SetDefault("verification.min_age_minutes", 60)
	v.SetDefault("verification.neutral_band_pct", 0.5)
	v.SetDefault("verification.request_delay", "500ms")
	v.SetDefault("verification.match_accept_score", 0.7)
	v.SetDefault("verification.match_window_days", 3)
	v.SetDefault("verification.match_price_tolerance_pct", 2.0)
	v.SetDefault("verification.notify_pass_summary", true)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.otlp_logs", false)
	v.SetDefault("telemetry.service_name", "catalyst-ai")
	v.SetDefault("telemetry.service_version", "1.0.0")
}

// DSN returns the connection string, preferring an explicit database URL.
func (d DatabaseConfig) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
