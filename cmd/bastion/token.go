// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/codec"
	"github.com/bastion-auth/bastion/lib/sessiontoken"
)

func runToken(args []string) error {
	var configPath string
	var tokenFile string
	var raw bool
	var atFlag string

	flagSet := newFlagSet("bastion token", &configPath)
	flagSet.StringVar(&tokenFile, "file", "", "base64 session token file ('-' for stdin)")
	flagSet.BoolVar(&raw, "raw", false, "print the CBOR diagnostic of the payload without verifying")
	flagSet.StringVar(&atFlag, "at", "", "reference time for the expiry check (RFC 3339, default now)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if tokenFile == "" {
		return fmt.Errorf("--file is required")
	}

	data, err := readTokenFile(tokenFile)
	if err != nil {
		return err
	}
	tokenBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("decoding token: %w", err)
	}

	if raw {
		// Diagnostic output only: the payload is shown as-is, with
		// no signature or expiry verification.
		if len(tokenBytes) <= ed25519.SignatureSize {
			return sessiontoken.ErrTokenTooShort
		}
		diagnostic, err := codec.Diagnose(tokenBytes[:len(tokenBytes)-ed25519.SignatureSize])
		if err != nil {
			return err
		}
		fmt.Println(diagnostic)
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	at, err := parseAt(atFlag)
	if err != nil {
		return err
	}
	public, _, err := sessiontoken.LoadKeypair(cfg.Token.StateDir)
	if err != nil {
		return fmt.Errorf("loading verification key: %w", err)
	}

	token, err := sessiontoken.VerifyAt(public, tokenBytes, at)
	if err != nil {
		return err
	}

	fmt.Printf("valid token for %s (session %s)\n", token.UserID, token.SessionID)
	fmt.Printf("  roles: %s\n", joinOrNone(token.Roles))
	if len(token.AdminRoles) > 0 {
		fmt.Printf("  admin roles: %s\n", strings.Join(token.AdminRoles, ", "))
	}
	fmt.Printf("  issued:  %s\n", time.Unix(token.IssuedAt, 0).UTC().Format(time.RFC3339))
	fmt.Printf("  expires: %s\n", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339))
	return nil
}

func readTokenFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
