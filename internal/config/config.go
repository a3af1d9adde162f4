package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	POS      POSConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin     string        `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	ReadHeaderTimeout time.Duration `envconfig:"HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout       time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"8s"`
}

type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	Addr         string        `envconfig:"REDIS_ADDR"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	AlertChannel string        `envconfig:"REDIS_ALERT_CHANNEL" default:"medpos:alerts:low-stock"`
	ReportTTL    time.Duration `envconfig:"REDIS_REPORT_TTL" default:"24h"`
}

type AuthConfig struct {
	Secret         string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	AdminUsername  string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPassword  string        `envconfig:"ADMIN_PASSWORD"`
}

type POSConfig struct {
	CheckoutLowStockThreshold int           `envconfig:"CHECKOUT_LOW_STOCK_THRESHOLD" default:"5"`
	WatcherThreshold          int           `envconfig:"WATCHER_LOW_STOCK_THRESHOLD" default:"10"`
	WatcherInterval           time.Duration `envconfig:"WATCHER_INTERVAL" default:"5m"`
	TimeZone                  string        `envconfig:"TIME_ZONE" default:"Asia/Jakarta"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Auth.AdminPassword = strings.TrimSpace(cfg.Auth.AdminPassword)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.HTTP.Port)
}

// Location resolves the configured time zone used for ids and daily aggregates.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.POS.TimeZone)
}

func (c Config) validate() error {
	var errs []error
	if c.POS.CheckoutLowStockThreshold < 0 || c.POS.WatcherThreshold < 0 {
		errs = append(errs, errors.New("low stock thresholds cannot be negative"))
	}
	if c.POS.WatcherInterval <= 0 {
		errs = append(errs, errors.New("WATCHER_INTERVAL must be positive"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS cannot exceed DB_MAX_CONNS"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("TIME_ZONE: %w", err))
	}
	return errors.Join(errs...)
}
