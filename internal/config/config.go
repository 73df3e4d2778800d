package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	SEC    SECConfig    `yaml:"sec" mapstructure:"sec"`
	FDIC   FDICConfig   `yaml:"fdic" mapstructure:"fdic"`
	Jobs   JobsConfig   `yaml:"jobs" mapstructure:"jobs"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SECConfig configures the SEC EDGAR adapter. UserAgent is required by the
// SEC fair-access policy and should identify the operator (name + email).
type SECConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	WWWURL    string `yaml:"www_url" mapstructure:"www_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	Since     string `yaml:"since" mapstructure:"since"`
}

// FDICConfig configures the FDIC BankFind adapter.
type FDICConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JobsConfig configures the job manager.
type JobsConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RetentionTTL     time.Duration `yaml:"retention_ttl" mapstructure:"retention_ttl"`
	MaxArtifactBytes int64         `yaml:"max_artifact_bytes" mapstructure:"max_artifact_bytes"`
}

// StoreConfig configures the optional job journal. Driver is one of
// "none", "sqlite", "postgres".
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP request boundary.
type ServerConfig struct {
	Port            int     `yaml:"port" mapstructure:"port"`
	FrontendURL     string  `yaml:"frontend_url" mapstructure:"frontend_url"`
	AuthUsername    string  `yaml:"auth_username" mapstructure:"auth_username"`
	AuthPasswordSHA string  `yaml:"auth_password_sha256" mapstructure:"auth_password_sha256"`
	SessionTTLHours int     `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	RateLimitRPM    float64 `yaml:"rate_limit_rpm" mapstructure:"rate_limit_rpm"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
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
	v.SetEnvPrefix("FILINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sec.base_url", "https://data.sec.gov")
	v.SetDefault("sec.www_url", "https://www.sec.gov")
	v.SetDefault("sec.user_agent", "Sells Advisors blake@sellsadvisors.com")
	v.SetDefault("sec.since", "2010-01-01")
	v.SetDefault("fdic.base_url", "https://banks.data.fdic.gov")
	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("jobs.timeout", "4m")
	v.SetDefault("jobs.retention_ttl", "30m")
	v.SetDefault("jobs.max_artifact_bytes", 256<<20)
	v.SetDefault("store.driver", "none")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.auth_username", "admin")
	v.SetDefault("server.session_ttl_hours", 24)
	v.SetDefault("server.rate_limit_rpm", 10)
	v.SetDefault("server.rate_limit_burst", 10)
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
