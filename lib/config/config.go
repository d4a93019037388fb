// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for bastion tools.
//
// Configuration is loaded from a single YAML file specified by:
//   - BASTION_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is
// the single source of truth: environment variables do not override
// file values, which keeps the effective configuration deterministic
// and auditable.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for bastion tools.
type Config struct {
	// Directory selects and configures the entity store backend.
	Directory DirectoryConfig `yaml:"directory"`

	// Token configures session token minting.
	Token TokenConfig `yaml:"token"`

	// Cache configures the shared SoD-set caches.
	Cache CacheConfig `yaml:"cache"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DirectoryConfig selects the entity store backend.
type DirectoryConfig struct {
	// Backend is "memory" or "ldap". The memory backend starts
	// empty and is only useful together with a seed file.
	Backend string `yaml:"backend"`

	// Seed is an optional JSONC seed file applied at startup.
	Seed string `yaml:"seed,omitempty"`

	// LDAP configures the ldap backend. Ignored for memory.
	LDAP LDAPConfig `yaml:"ldap,omitempty"`
}

// LDAPConfig locates and authenticates to an LDAP directory.
type LDAPConfig struct {
	// URL is the server address, e.g. "ldap://localhost:389".
	URL string `yaml:"url"`

	// BaseDN roots the bastion subtree, e.g. "dc=example,dc=com".
	BaseDN string `yaml:"baseDN"`

	// BindDN and BindPassword are the administrative credential.
	BindDN       string `yaml:"bindDN"`
	BindPassword string `yaml:"bindPassword"`

	// TimeoutSeconds bounds each directory operation. Zero uses the
	// client library default.
	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"`
}

// TokenConfig configures session token minting.
type TokenConfig struct {
	// StateDir holds the Ed25519 signing keypair.
	StateDir string `yaml:"stateDir"`

	// TTLSeconds is the token lifetime. Tokens are bearer
	// credentials; keep this short.
	TTLSeconds int `yaml:"ttlSeconds"`
}

// CacheConfig configures the SoD-set caches shared between the
// managers.
type CacheConfig struct {
	// SDSetTTLSeconds is how long cached SoD sets stay valid
	// without an explicit invalidation. Zero disables caching.
	SDSetTTLSeconds int `yaml:"sdSetTTLSeconds"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
}

// Default returns the configuration used when the file omits a value.
func Default() *Config {
	return &Config{
		Directory: DirectoryConfig{Backend: "memory"},
		Token: TokenConfig{
			StateDir:   "/var/lib/bastion",
			TTLSeconds: 300,
		},
		Cache:   CacheConfig{SDSetTTLSeconds: 60},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from the path in the BASTION_CONFIG
// environment variable. Fails when the variable is unset; there is no
// default location.
func Load() (*Config, error) {
	configPath := os.Getenv("BASTION_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("BASTION_CONFIG environment variable not set; " +
			"set it to the path of your bastion.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging the
// file over the defaults and validating the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	switch c.Directory.Backend {
	case "memory":
	case "ldap":
		if c.Directory.LDAP.URL == "" {
			return fmt.Errorf("directory.ldap.url is required for the ldap backend")
		}
		if c.Directory.LDAP.BaseDN == "" {
			return fmt.Errorf("directory.ldap.baseDN is required for the ldap backend")
		}
	default:
		return fmt.Errorf("directory.backend %q: want \"memory\" or \"ldap\"", c.Directory.Backend)
	}

	if c.Token.TTLSeconds <= 0 {
		return fmt.Errorf("token.ttlSeconds must be positive")
	}
	if c.Cache.SDSetTTLSeconds < 0 {
		return fmt.Errorf("cache.sdSetTTLSeconds must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: want debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

// TokenTTL returns the configured token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Token.TTLSeconds) * time.Second
}

// CacheTTL returns the configured SoD-set cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.SDSetTTLSeconds) * time.Second
}
