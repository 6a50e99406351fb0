// Package config loads service configuration from an optional YAML file,
// a .env file, and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	Regiojet struct {
		APIBaseURL     string        `yaml:"api_base_url"`
		BookingBaseURL string        `yaml:"booking_base_url"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"regiojet"`

	Monitor struct {
		CheckInterval time.Duration `yaml:"check_interval"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		LeaseTTL      time.Duration `yaml:"lease_ttl"`
		// Upstream requests per second across all check units in a tick.
		CheckRateLimit float64 `yaml:"check_rate_limit"`
	} `yaml:"monitor"`

	Cache struct {
		LocationTTL time.Duration `yaml:"location_ttl"`
		MemoTTL     time.Duration `yaml:"memo_ttl"`
	} `yaml:"cache"`

	Notify struct {
		MaxAttempts int    `yaml:"max_attempts"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"notify"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		FromName string `yaml:"from_name"`
	} `yaml:"smtp"`
}

// Load reads configuration. path may be empty; a missing YAML file or .env
// is not an error, absent values fall back to defaults.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	var c Config
	c.ListenAddr = ":8080"
	c.Regiojet.APIBaseURL = "https://brn-ybus-pubapi.sa.cz/restapi"
	c.Regiojet.BookingBaseURL = "https://regiojet.cz/"
	c.Regiojet.Timeout = 15 * time.Second
	c.Monitor.CheckInterval = 60 * time.Second
	c.Monitor.SweepInterval = 300 * time.Second
	c.Monitor.LeaseTTL = 45 * time.Second
	c.Monitor.CheckRateLimit = 10
	c.Cache.LocationTTL = 24 * time.Hour
	c.Cache.MemoTTL = time.Hour
	c.Notify.MaxAttempts = 3
	c.Notify.Timezone = "Europe/Prague"
	c.SMTP.Port = 465
	c.SMTP.FromName = "Ticket Sniper"
	return c
}

func applyEnv(c *Config) {
	strVar(&c.ListenAddr, "LISTEN_ADDR")
	strVar(&c.DatabaseURL, "DATABASE_URL")
	strVar(&c.RedisURL, "REDIS_URL")
	strVar(&c.Regiojet.APIBaseURL, "REGIOJET_API_BASE_URL")
	strVar(&c.Regiojet.BookingBaseURL, "REGIOJET_BOOKING_BASE_URL")
	durVar(&c.Regiojet.Timeout, "REGIOJET_TIMEOUT")
	durVar(&c.Monitor.CheckInterval, "CHECK_INTERVAL")
	durVar(&c.Monitor.SweepInterval, "SWEEP_INTERVAL")
	durVar(&c.Monitor.LeaseTTL, "CHECK_LEASE_TTL")
	floatVar(&c.Monitor.CheckRateLimit, "CHECK_RATE_LIMIT")
	durVar(&c.Cache.LocationTTL, "LOCATION_CACHE_TTL")
	durVar(&c.Cache.MemoTTL, "LOCATION_MEMO_TTL")
	intVar(&c.Notify.MaxAttempts, "NOTIFY_MAX_ATTEMPTS")
	strVar(&c.Notify.Timezone, "NOTIFY_TIMEZONE")
	strVar(&c.SMTP.Host, "SMTP_HOST")
	intVar(&c.SMTP.Port, "SMTP_PORT")
	strVar(&c.SMTP.User, "SMTP_USER")
	strVar(&c.SMTP.Password, "SMTP_PASSWORD")
	strVar(&c.SMTP.From, "SMTP_FROM")
	strVar(&c.SMTP.FromName, "SMTP_FROM_NAME")
}

func strVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVar(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// durVar accepts Go duration strings ("90s") and bare seconds ("90").
func durVar(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
