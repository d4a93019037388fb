// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/sessiontoken"
)

func runKeygen(args []string) error {
	var configPath string
	var stateDir string
	var force bool

	flagSet := newFlagSet("bastion keygen", &configPath)
	flagSet.StringVar(&stateDir, "state-dir", "", "key directory (default: token.stateDir from config)")
	flagSet.BoolVar(&force, "force", false, "overwrite an existing keypair")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if stateDir == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		stateDir = cfg.Token.StateDir
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", stateDir, err)
	}

	if !force {
		if _, _, err := sessiontoken.LoadKeypair(stateDir); err == nil {
			return fmt.Errorf("keypair already exists in %s (use --force to replace)", stateDir)
		}
	}

	public, private, err := sessiontoken.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := sessiontoken.SaveKeypair(stateDir, public, private); err != nil {
		return err
	}

	fmt.Printf("keypair written to %s\n", stateDir)
	fmt.Printf("public key: %s\n", hex.EncodeToString(public))
	return nil
}
