// Package config reads engine settings from an optional file and the
// CALGATEWAY_* environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/guilherme-santos/calgateway/internal"
	"github.com/guilherme-santos/calgateway/internal/availability"
	"github.com/guilherme-santos/calgateway/internal/retry"
)

const EnvPrefix = "CALGATEWAY"

type Config struct {
	Database struct {
		Driver string
		DSN    string
	}
	Storage struct {
		EncryptionKey string `mapstructure:"encryption_key"`
	}
	Google    Provider
	Microsoft Provider
	Retry     struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		MinDelay    time.Duration `mapstructure:"min_delay"`
		MaxDelay    time.Duration `mapstructure:"max_delay"`
		Multiplier  time.Duration
	}
	Token struct {
		RefreshMargin time.Duration `mapstructure:"refresh_margin"`
	}
	Lock struct {
		Backend string
		TTL     time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Calendar struct {
		DefaultID string `mapstructure:"default_id"`
		ListLimit int    `mapstructure:"list_limit"`
	}
	Log struct {
		Level string
	}
	WorkingHours struct {
		TimeZone string `mapstructure:"time_zone"`
		Start    string
		End      string
		Days     []string
	} `mapstructure:"working_hours"`
}

type Provider struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Tenant       string
	// Endpoint overrides the provider API base URL.
	Endpoint string
	// TokenURL overrides the OAuth2 token endpoint used for refreshes.
	TokenURL string `mapstructure:"token_url"`
}

// Enabled reports whether the provider has OAuth2 client credentials.
func (p Provider) Enabled() bool {
	return p.ClientID != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "calgateway.db")
	v.SetDefault("storage.encryption_key", "")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.endpoint", "")
	v.SetDefault("google.token_url", "")
	v.SetDefault("microsoft.client_id", "")
	v.SetDefault("microsoft.client_secret", "")
	v.SetDefault("microsoft.tenant", "common")
	v.SetDefault("microsoft.endpoint", "")
	v.SetDefault("microsoft.token_url", "")
	v.SetDefault("retry.max_attempts", retry.DefaultPolicy.MaxAttempts)
	v.SetDefault("retry.min_delay", retry.DefaultPolicy.MinDelay)
	v.SetDefault("retry.max_delay", retry.DefaultPolicy.MaxDelay)
	v.SetDefault("retry.multiplier", retry.DefaultPolicy.Multiplier)
	v.SetDefault("token.refresh_margin", 5*time.Minute)
	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("calendar.default_id", "primary")
	v.SetDefault("calendar.list_limit", 250)
	v.SetDefault("log.level", "info")
	v.SetDefault("working_hours.time_zone", "UTC")
	v.SetDefault("working_hours.start", "09:00")
	v.SetDefault("working_hours.end", "17:00")
	v.SetDefault("working_hours.days", []string{"mon", "tue", "wed", "thu", "fri"})
}

// Load reads path when given, then lets the environment override it.
// Every key has a default, so an empty path with no environment is valid.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	// Env values for lists arrive as one string.
	if days := v.GetStringSlice("working_hours.days"); len(days) == 1 {
		cfg.WorkingHours.Days = strings.FieldsFunc(days[0], func(r rune) bool {
			return r == ',' || r == ' '
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unsupported lock.backend %q", c.Lock.Backend)
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("config: retry.max_attempts must be at least 1")
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// EncryptionKey decodes storage.encryption_key, nil when unset.
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Storage.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Storage.EncryptionKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("config: storage.encryption_key must be 64 hex characters")
	}
	return key, nil
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		MinDelay:    c.Retry.MinDelay,
		MaxDelay:    c.Retry.MaxDelay,
		Multiplier:  c.Retry.Multiplier,
	}
}

// Policy builds the default working hours.
func (c *Config) Policy() (availability.WorkingHoursPolicy, error) {
	loc, err := time.LoadLocation(c.WorkingHours.TimeZone)
	if err != nil {
		return availability.WorkingHoursPolicy{}, internal.Validationf("config", "invalid working_hours.time_zone %q", c.WorkingHours.TimeZone)
	}
	start, err := availability.ParseTimeOfDay(c.WorkingHours.Start)
	if err != nil {
		return availability.WorkingHoursPolicy{}, err
	}
	end, err := availability.ParseTimeOfDay(c.WorkingHours.End)
	if err != nil {
		return availability.WorkingHoursPolicy{}, err
	}

	p := availability.WorkingHoursPolicy{Days: map[time.Weekday]availability.Hours{}, Location: loc}
	for _, d := range c.WorkingHours.Days {
		wd, err := availability.ParseWeekday(d)
		if err != nil {
			return availability.WorkingHoursPolicy{}, internal.Validationf("config", "invalid working_hours.days entry %q", d)
		}
		p.Days[wd] = availability.Hours{Start: start, End: end}
	}
	if len(p.Days) == 0 {
		return availability.WorkingHoursPolicy{}, internal.Validationf("config", "working_hours.days is empty")
	}
	return p, p.Validate()
}
