package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the whole bot configuration.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Session  SessionConfig  `yaml:"session"`
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	DemoMode bool           `yaml:"demo_mode"`
}

// StrategyConfig holds the staking and daily-risk parameters.
type StrategyConfig struct {
	BaseStakeFraction float64 `yaml:"base_stake_fraction"` // share of balance per fresh order
	GaleRate          float64 `yaml:"gale_rate"`           // stake multiplier per gale
	MaxGales          int     `yaml:"max_gales"`           // 0 disables gales
	SorosHolding      float64 `yaml:"soros_holding"`       // share of profit kept out of the rollover
	MaxSoros          int     `yaml:"max_soros"`
	StopWinFraction   float64 `yaml:"stop_win_fraction"`  // 0 disables
	StopLossFraction  float64 `yaml:"stop_loss_fraction"` // 0 disables
	CycleLossEnabled  bool    `yaml:"cycle_loss_enabled"`
	SoftStop          bool    `yaml:"soft_stop"` // halt today only instead of shutting down
	MinStake          float64 `yaml:"min_stake"`
	MaxStake          float64 `yaml:"max_stake"`
}

// SessionConfig tunes the broker session guard.
type SessionConfig struct {
	Retries             int     `yaml:"retries"`
	RestartThreshold    int     `yaml:"restart_threshold"`
	SettleMarginSeconds int     `yaml:"settle_margin_seconds"`
	CallsPerSecond      float64 `yaml:"calls_per_second"`
}

// TelegramChannel subscribes one signal channel.
type TelegramChannel struct {
	ChatID  int64  `yaml:"chat_id"`
	Pattern string `yaml:"pattern"`
}

// TelegramConfig controls the signal source.
type TelegramConfig struct {
	Token              string            `yaml:"token"`
	Channels           []TelegramChannel `yaml:"channels"`
	IdleTimeoutMinutes int               `yaml:"idle_timeout_minutes"`
	TestMode           bool              `yaml:"test_mode"`
}

// StorageConfig controls where the journal is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Environment
// variables override the YAML values for the keys they cover. A missing
// config file is fine; an env-only setup was how the bot originally ran.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Strategy: StrategyConfig{MaxGales: 1, CycleLossEnabled: true}}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// SettleMargin returns the settlement margin as a time.Duration.
func (c *Config) SettleMargin() time.Duration {
	return time.Duration(c.Session.SettleMarginSeconds) * time.Second
}

// IdleTimeout returns the signal-source idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Telegram.IdleTimeoutMinutes) * time.Minute
}

// applyEnvOverrides keeps the original env variable names so an
// existing .env keeps working.
func applyEnvOverrides(cfg *Config) {
	envFloat("BASE_ORDER", &cfg.Strategy.BaseStakeFraction)
	envFloat("GALE_RATE", &cfg.Strategy.GaleRate)
	envInt("MAX_GALES", &cfg.Strategy.MaxGales)
	envFloat("SOROS_HOLDING", &cfg.Strategy.SorosHolding)
	envInt("MAX_SOROS", &cfg.Strategy.MaxSoros)
	envFloat("STOP_WIN", &cfg.Strategy.StopWinFraction)
	envFloat("STOP_LOSS", &cfg.Strategy.StopLossFraction)
	envBool("CYCLE_LOSS", &cfg.Strategy.CycleLossEnabled)
	envBool("SOFT_STOP", &cfg.Strategy.SoftStop)
	envBool("DEMO_MODE", &cfg.DemoMode)
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills anything still unset with the strategy defaults the
// bot has always shipped with.
func setDefaults(cfg *Config) {
	if cfg.Strategy.BaseStakeFraction <= 0 {
		cfg.Strategy.BaseStakeFraction = 0.02
	}
	if cfg.Strategy.GaleRate <= 0 {
		cfg.Strategy.GaleRate = 2.2
	}
	if cfg.Strategy.MaxGales < 0 {
		cfg.Strategy.MaxGales = 0
	}
	if cfg.Strategy.SorosHolding <= 0 {
		cfg.Strategy.SorosHolding = 0.1
	}
	if cfg.Strategy.MaxSoros <= 0 {
		cfg.Strategy.MaxSoros = 3
	}
	if cfg.Strategy.MinStake <= 0 {
		cfg.Strategy.MinStake = 1
	}
	if cfg.Session.Retries <= 0 {
		cfg.Session.Retries = 1
	}
	if cfg.Session.RestartThreshold <= 0 {
		cfg.Session.RestartThreshold = 2
	}
	if cfg.Session.SettleMarginSeconds <= 0 {
		cfg.Session.SettleMarginSeconds = 1
	}
	if cfg.Session.CallsPerSecond <= 0 {
		cfg.Session.CallsPerSecond = 1
	}
	if cfg.Telegram.IdleTimeoutMinutes <= 0 {
		cfg.Telegram.IdleTimeoutMinutes = 60
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "galebot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "True" || v == "true" || v == "1"
	}
}
