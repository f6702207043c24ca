// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Identity  IdentityConfig
	App       AppConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes the store connection. URL wins over the
// individual fields when set.
type DatabaseConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// IdentityConfig selects the account provider. "gotrue" talks to the hosted
// auth service at StoreURL; "local" keeps accounts in the app database.
type IdentityConfig struct {
	Provider  string
	StoreURL  string
	PublicKey string
	SecretKey string
}

type AppConfig struct {
	BaseURL       string
	BusinessName  string
	Env           string
	Dev           bool
	Migrations    bool
	// TrustedProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only set it when a proxy that overwrites those headers sits in front.
	TrustedProxy  bool
	SessionSecret string
	LogLevel      string
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

const (
	ProviderGoTrue = "gotrue"
	ProviderLocal  = "local"

	devSessionSecret = "dev-session-secret"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("READ_TIMEOUT", "15s")
	v.SetDefault("WRITE_TIMEOUT", "30s")
	v.SetDefault("IDLE_TIMEOUT", "60s")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "agency")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("IDENTITY_PROVIDER", ProviderGoTrue)

	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_SECRET", devSessionSecret)
	v.SetDefault("ADMIN_NAME", "Admin")
	v.SetDefault("BUSINESS_NAME", "Agency Portal")

	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper builds and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			ReadTimeout:  v.GetDuration("READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("IDLE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			URL:          v.GetString("DATABASE_URL"),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Identity: IdentityConfig{
			Provider:  strings.ToLower(v.GetString("IDENTITY_PROVIDER")),
			StoreURL:  strings.TrimRight(v.GetString("STORE_URL"), "/"),
			PublicKey: v.GetString("STORE_PUBLIC_KEY"),
			SecretKey: v.GetString("STORE_SECRET_KEY"),
		},
		App: AppConfig{
			BaseURL:       strings.TrimRight(v.GetString("APP_URL"), "/"),
			BusinessName:  v.GetString("BUSINESS_NAME"),
			Env:           v.GetString("APP_ENV"),
			Dev:           v.GetBool("DEV"),
			Migrations:    v.GetBool("MIGRATIONS"),
			TrustedProxy:  v.GetBool("TRUSTED_PROXY"),
			SessionSecret: v.GetString("SESSION_SECRET"),
			LogLevel:      v.GetString("LOG_LEVEL"),
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminName:     v.GetString("ADMIN_NAME"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want postgres or sqlite", c.Database.Driver))
	}
	switch c.Identity.Provider {
	case ProviderGoTrue:
		if c.Identity.StoreURL == "" {
			errs = append(errs, errors.New("STORE_URL is required for the gotrue provider"))
		}
		if c.Identity.SecretKey == "" {
			errs = append(errs, errors.New("STORE_SECRET_KEY is required for the gotrue provider"))
		}
	case ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_PROVIDER %q: want gotrue or local", c.Identity.Provider))
	}
	if !c.App.Dev && (c.App.SessionSecret == "" || c.App.SessionSecret == devSessionSecret) {
		errs = append(errs, errors.New("SESSION_SECRET must be set outside dev mode"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// DSN returns the connection string for the configured driver. For sqlite
// Name is used as the file path.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == "sqlite" {
		return d.Name
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// IsProduction reports whether cookies should be marked Secure.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}
