// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/session"
	"github.com/bastion-auth/bastion/lib/sessiontoken"
)

func runSession(args []string) error {
	var configPath string
	var userID string
	var passwordFile string
	var rolesFlag string
	var adminRolesFlag string
	var trusted bool
	var atFlag string
	var mint bool

	flagSet := newFlagSet("bastion session", &configPath)
	flagSet.StringVar(&userID, "user", "", "user identifier")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
	flagSet.StringVar(&rolesFlag, "roles", "", "comma-separated subset of assigned roles to activate")
	flagSet.StringVar(&adminRolesFlag, "admin-roles", "", "comma-separated subset of assigned admin roles to activate")
	flagSet.BoolVar(&trusted, "trusted", false, "skip credential verification (pre-authenticated principal)")
	flagSet.StringVar(&atFlag, "at", "", "reference time for constraint evaluation (RFC 3339, default now)")
	flagSet.BoolVar(&mint, "mint", false, "mint a signed session token and print it")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	at, err := parseAt(atFlag)
	if err != nil {
		return err
	}

	directory, closeDirectory, err := openDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	request := session.Request{
		UserID:     userID,
		Roles:      splitRoles(rolesFlag),
		AdminRoles: splitRoles(adminRolesFlag),
		Trusted:    trusted,
	}
	if !trusted {
		password, err := readPassword(passwordFile)
		if err != nil {
			return err
		}
		request.Password = password
	}

	activator := &session.Activator{
		Store:    directory,
		Logger:   newLogger(cfg),
		DSDCache: newSDCache(cfg),
	}
	result, err := activator.CreateSessionAt(context.Background(), request, at)
	if err != nil {
		return err
	}

	printSession(result)

	if mint {
		_, private, err := sessiontoken.LoadKeypair(cfg.Token.StateDir)
		if err != nil {
			return fmt.Errorf("loading signing key (run 'bastion keygen'?): %w", err)
		}
		token := sessiontoken.FromSession(result, at, cfg.TokenTTL())
		raw, err := sessiontoken.Mint(private, token)
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(raw))
	}
	return nil
}

func printSession(s *model.Session) {
	fmt.Printf("session %s for %s\n", s.ID, s.UserID)
	if len(s.Roles) == 0 {
		fmt.Println("  roles: none")
	} else {
		fmt.Println("  roles:")
		for _, binding := range s.Roles {
			fmt.Printf("    %s\n", binding.Role)
		}
	}
	if len(s.AdminRoles) > 0 {
		fmt.Println("  admin roles:")
		for _, binding := range s.AdminRoles {
			fmt.Printf("    %s\n", binding.Role)
		}
	}
	for _, warning := range s.Warnings {
		fmt.Printf("  excluded: %s (code %d: %s)\n", warning.Role, warning.Code, warning.Message)
	}
	if s.Timeout > 0 {
		fmt.Printf("  inactivity timeout: %s\n", s.Timeout)
	}
	if s.GracesRemaining > 0 {
		fmt.Printf("  password expired: %d grace logins remaining\n", s.GracesRemaining)
	}
}
