package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures the remote analysis service and the poll loop.
type AnalysisConfig struct {
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	InitiatePath       string  `yaml:"initiate_path" mapstructure:"initiate_path"`
	PollPath           string  `yaml:"poll_path" mapstructure:"poll_path"`
	ToolID             string  `yaml:"tool_id" mapstructure:"tool_id"`
	LanguageCode       string  `yaml:"language_code" mapstructure:"language_code"`
	Source             string  `yaml:"source" mapstructure:"source"`
	Action             string  `yaml:"action" mapstructure:"action"`
	DeviceID           string  `yaml:"device_id" mapstructure:"device_id"`
	PIMSID             string  `yaml:"pim_sid" mapstructure:"pim_sid"`
	TenantID           string  `yaml:"tenant_id" mapstructure:"tenant_id"`
	UserID             string  `yaml:"user_id" mapstructure:"user_id"`
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	PollIntervalMS     int     `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// PollInterval returns the fixed delay between poll attempts.
func (a AnalysisConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout.
func (a AnalysisConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSecs) * time.Second
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SessionConfig configures the session-scoped profile slot.
type SessionConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns how long a saved profile is kept.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures the background health checks of serve.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	StaleAfterMinutes    int     `yaml:"stale_after_minutes" mapstructure:"stale_after_minutes"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	AlertCooldownMinutes int     `yaml:"alert_cooldown_minutes" mapstructure:"alert_cooldown_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.base_url", "https://edge-service.simplai.ai")
	v.SetDefault("analysis.initiate_path", "/interact/api/ve1/intract/tool/conversation")
	v.SetDefault("analysis.poll_path", "/interact/api/v1/intract/conversation/fetchDetails")
	v.SetDefault("analysis.tool_id", "687d1e0e52c9c1d6fc6f0165")
	v.SetDefault("analysis.language_code", "EN")
	v.SetDefault("analysis.source", "APP")
	v.SetDefault("analysis.action", "START_SCREEN")
	v.SetDefault("analysis.device_id", "simplai")
	v.SetDefault("analysis.pim_sid", "")
	v.SetDefault("analysis.tenant_id", "11")
	v.SetDefault("analysis.user_id", "72")
	v.SetDefault("analysis.max_attempts", 180)
	v.SetDefault("analysis.poll_interval_ms", 5000)
	v.SetDefault("analysis.request_timeout_secs", 30)
	v.SetDefault("analysis.rate_limit_rps", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "profiles.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl_minutes", 24*60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.stale_after_minutes", 30)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.alert_cooldown_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command mode depends on are present.
// Modes: analyze, serve, report. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
		}
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
		if c.Store.Driver == "postgres" && c.Store.MinConns > c.Store.MaxConns {
			add("store.min_conns must not exceed store.max_conns")
		}
	}

	checkAnalysis := func() {
		a := c.Analysis
		if a.BaseURL == "" {
			add("analysis.base_url is required")
		}
		if a.ToolID == "" {
			add("analysis.tool_id is required")
		}
		if a.PIMSID == "" {
			add("analysis.pim_sid is required")
		}
		if a.TenantID == "" {
			add("analysis.tenant_id is required")
		}
		if a.UserID == "" {
			add("analysis.user_id is required")
		}
		if a.MaxAttempts < 1 {
			add("analysis.max_attempts must be > 0")
		}
		if a.PollIntervalMS < 0 {
			add("analysis.poll_interval_ms must be >= 0")
		}
		if a.RateLimitRPS < 0 {
			add("analysis.rate_limit_rps must be >= 0")
		}
		switch c.Session.Driver {
		case "memory":
		case "redis":
			if c.Session.RedisAddr == "" {
				add("session.redis_addr is required for the redis driver")
			}
		default:
			add("session.driver must be memory or redis, got %q", c.Session.Driver)
		}
		if c.Session.TTLMinutes < 1 {
			add("session.ttl_minutes must be > 0")
		}
	}

	switch mode {
	case "analyze":
		checkAnalysis()
		checkStore()
	case "serve":
		checkAnalysis()
		checkStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if m := c.Monitoring; m.Enabled {
			if m.FailureRateThreshold <= 0 || m.FailureRateThreshold > 1 {
				add("monitoring.failure_rate_threshold must be in (0, 1]")
			}
			if m.LookbackWindowHours < 1 {
				add("monitoring.lookback_window_hours must be > 0")
			}
		}
	case "report":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
