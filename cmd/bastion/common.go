// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/config"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/store"
	"github.com/bastion-auth/bastion/lib/store/ldapdir"
	"github.com/bastion-auth/bastion/lib/store/memdir"
)

// loadConfig resolves the configuration: the --config flag when set,
// otherwise the BASTION_CONFIG environment variable.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// openDirectory builds the configured entity store. The returned
// close function is a no-op for the memory backend.
func openDirectory(cfg *config.Config) (store.Directory, func() error, error) {
	switch cfg.Directory.Backend {
	case "memory":
		return memdir.New(), func() error { return nil }, nil
	case "ldap":
		directory, err := ldapdir.New(ldapdir.Config{
			URL:          cfg.Directory.LDAP.URL,
			BaseDN:       cfg.Directory.LDAP.BaseDN,
			BindDN:       cfg.Directory.LDAP.BindDN,
			BindPassword: cfg.Directory.LDAP.BindPassword,
			Timeout:      time.Duration(cfg.Directory.LDAP.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return directory, directory.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
}

// newLogger builds a text slog logger at the configured level,
// writing to stderr so command output on stdout stays parseable.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newSDCache builds an SoD-set cache with the configured TTL, or nil
// when caching is disabled.
func newSDCache(cfg *config.Config) *cache.Cache[[]model.SDSet] {
	ttl := cfg.CacheTTL()
	if ttl == 0 {
		return nil
	}
	return cache.New[[]model.SDSet](ttl)
}

// readPassword reads a credential: from the file when passwordFile is
// set, otherwise interactively with echo disabled.
func readPassword(passwordFile string) ([]byte, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", passwordFile, err)
		}
		return []byte(strings.TrimRight(string(data), "\r\n")), nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("no terminal available for interactive password prompt (use --password-file)")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return passwordBytes, nil
}

// parseAt parses an optional --at reference time, defaulting to now.
func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing --at %q (want RFC 3339): %w", at, err)
	}
	return t, nil
}

// splitRoles splits a comma-separated role list, dropping empties.
func splitRoles(flagValue string) []string {
	if flagValue == "" {
		return nil
	}
	var roles []string
	for _, role := range strings.Split(flagValue, ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// newFlagSet builds a pflag set with the shared --config flag.
func newFlagSet(name string, configPath *string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.StringVar(configPath, "config", "", "path to bastion.yaml (default: $BASTION_CONFIG)")
	return flagSet
}
