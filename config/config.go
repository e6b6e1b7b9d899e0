// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Environment always wins so
// container deployments can override a baked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Port        string `yaml:"port"`
	StoreDriver string `yaml:"store_driver"` // memory | postgres
	PGDSN       string `yaml:"pg_dsn"`
	Seed        bool   `yaml:"seed"`

	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	ChallengeTTLSec   int `yaml:"challenge_ttl_sec"`

	AdminKey          string   `yaml:"admin_key"`
	OperatorKey       string   `yaml:"operator_key"`
	AuthorizedSigners []string `yaml:"authorized_signers"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Port:              "8080",
		StoreDriver:       "memory",
		Seed:              true,
		RequestTimeoutSec: 30,
		ChallengeTTLSec:   300,
	}
}

// Load reads the YAML file at path (if non-empty and present) over the
// defaults, then applies COVERGATE_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if cfg.StoreDriver != "memory" && cfg.StoreDriver != "postgres" {
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == "postgres" && cfg.PGDSN == "" {
		return Config{}, fmt.Errorf("postgres driver requires a DSN")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COVERGATE_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("COVERGATE_STORE_DRIVER"); v != "" {
		c.StoreDriver = v
	}
	if v := os.Getenv("COVERGATE_PG_DSN"); v != "" {
		c.PGDSN = v
	}
	if v := os.Getenv("COVERGATE_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Seed = b
		}
	}
	if v := os.Getenv("COVERGATE_REQUEST_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RequestTimeoutSec = n
		}
	}
	if v := os.Getenv("COVERGATE_CHALLENGE_TTL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ChallengeTTLSec = n
		}
	}
	if v := os.Getenv("COVERGATE_ADMIN_KEY"); v != "" {
		c.AdminKey = v
	}
	if v := os.Getenv("COVERGATE_OPERATOR_KEY"); v != "" {
		c.OperatorKey = v
	}
	if v := os.Getenv("COVERGATE_AUTHORIZED_SIGNERS"); v != "" {
		c.AuthorizedSigners = c.AuthorizedSigners[:0]
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.AuthorizedSigners = append(c.AuthorizedSigners, s)
			}
		}
	}
}

// RequestTimeout returns the per-request deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// ChallengeTTL returns the wallet challenge lifetime.
func (c Config) ChallengeTTL() time.Duration {
	return time.Duration(c.ChallengeTTLSec) * time.Second
}
