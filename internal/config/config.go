package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/scheduler"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	Store          string   `mapstructure:"STORE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	MaxGenerationDays    int    `mapstructure:"MAX_GENERATION_DAYS"`
	WeeklyOffDay         string `mapstructure:"WEEKLY_OFF_DAY"`
	Timezone             string `mapstructure:"TIMEZONE"`
	SchedulerEnabled     bool   `mapstructure:"SCHEDULER_ENABLED"`
	SchedulerCron        string `mapstructure:"SCHEDULER_CRON"`
	SchedulerConcurrency int    `mapstructure:"SCHEDULER_CONCURRENCY"`
	DefaultDaysAhead     int    `mapstructure:"DEFAULT_DAYS_AHEAD"`
	DefaultTemplates     string `mapstructure:"DEFAULT_TEMPLATES"`
}

var keys = []string{
	"PORT", "ENV", "STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"MAX_GENERATION_DAYS", "WEEKLY_OFF_DAY", "TIMEZONE",
	"SCHEDULER_ENABLED", "SCHEDULER_CRON", "SCHEDULER_CONCURRENCY",
	"DEFAULT_DAYS_AHEAD", "DEFAULT_TEMPLATES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", "pg")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("MAX_GENERATION_DAYS", 15)
	v.SetDefault("WEEKLY_OFF_DAY", "sunday")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_CRON", "5 0 * * *")
	v.SetDefault("SCHEDULER_CONCURRENCY", 4)
	v.SetDefault("DEFAULT_DAYS_AHEAD", 7)
	v.SetDefault("DEFAULT_TEMPLATES", "09:00-17:00/30")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.Store == "pg" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location is the clinic calendar zone that defines "today".
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) RestDay() (calendar.RestDay, error) {
	return calendar.ParseRestDay(c.WeeklyOffDay)
}

// Templates parses DEFAULT_TEMPLATES, a comma separated list of
// HH:MM-HH:MM/gap windows.
func (c *Config) Templates() ([]slot.Template, error) {
	return slot.ParseTemplates(c.DefaultTemplates)
}

// Validate checks that the configuration is safe to run. Outside
// development, tokens must be verifiable against an issuer.
func (c *Config) Validate() error {
	if c.Store != "pg" && c.Store != "memory" {
		return fmt.Errorf("STORE must be \"pg\" or \"memory\", got %q", c.Store)
	}
	if c.MaxGenerationDays <= 0 {
		return fmt.Errorf("MAX_GENERATION_DAYS must be positive, got %d", c.MaxGenerationDays)
	}
	if c.DefaultDaysAhead < 0 || c.DefaultDaysAhead > c.MaxGenerationDays {
		return fmt.Errorf("DEFAULT_DAYS_AHEAD must be within [0, %d], got %d", c.MaxGenerationDays, c.DefaultDaysAhead)
	}
	if _, err := c.RestDay(); err != nil {
		return fmt.Errorf("WEEKLY_OFF_DAY: %w", err)
	}
	if _, err := c.Templates(); err != nil {
		return fmt.Errorf("DEFAULT_TEMPLATES: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if err := scheduler.ParseSpec(c.SchedulerCron); err != nil {
		return fmt.Errorf("SCHEDULER_CRON: %w", err)
	}
	if c.SchedulerConcurrency < 1 {
		return fmt.Errorf("SCHEDULER_CONCURRENCY must be at least 1, got %d", c.SchedulerConcurrency)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if !c.IsDev() {
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when ENV=%q", c.Env)
		}
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
		}
	}
	return nil
}
