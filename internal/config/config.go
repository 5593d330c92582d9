// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type BotConfig struct {
	Token string `yaml:"token"`
}

type CryptoPayConfig struct {
	APIToken  string `yaml:"api_token"`
	ReturnURL string `yaml:"return_url"`
}

type CardlinkConfig struct {
	APIKey         string   `yaml:"api_key"`
	MerchantSecret string   `yaml:"merchant_secret"`
	SuccessURL     string   `yaml:"success_url"`
	FailURL        string   `yaml:"fail_url"`
	AllowedLocales []string `yaml:"allowed_locales"`
	// AllowUnknownLocale lets users with an empty/unlisted locale through the
	// eligibility check instead of rejecting them.
	AllowUnknownLocale bool `yaml:"allow_unknown_locale"`
}

type ProvidersConfig struct {
	CryptoPay CryptoPayConfig `yaml:"cryptopay"`
	Cardlink  CardlinkConfig  `yaml:"cardlink"`
}

type SecurityConfig struct {
	// PayloadSecret keys the HMAC over checkout payloads round-tripped through
	// providers.
	PayloadSecret string `yaml:"payload_secret"`
}

type SchedulerConfig struct {
	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Providers ProvidersConfig `yaml:"providers"`
	Security  SecurityConfig  `yaml:"security"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 8
	}
	if cfg.Scheduler.ExpiryCheckInterval <= 0 {
		cfg.Scheduler.ExpiryCheckInterval = time.Minute
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Security.PayloadSecret == "" {
		return nil, errors.New("security.payload_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
