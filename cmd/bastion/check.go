// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/access"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/session"
	"github.com/bastion-auth/bastion/lib/sessiontoken"
)

func runCheck(args []string) error {
	var configPath string
	var userID string
	var passwordFile string
	var rolesFlag string
	var tokenFile string
	var object string
	var operation string
	var objectID string
	var atFlag string

	flagSet := newFlagSet("bastion check", &configPath)
	flagSet.StringVar(&userID, "user", "", "user identifier (password path)")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
	flagSet.StringVar(&rolesFlag, "roles", "", "comma-separated subset of assigned roles to activate")
	flagSet.StringVar(&tokenFile, "token-file", "", "base64 session token file (token path, replaces --user)")
	flagSet.StringVar(&object, "object", "", "permission object name")
	flagSet.StringVar(&operation, "operation", "", "operation on the object")
	flagSet.StringVar(&objectID, "objectid", "", "object instance qualifier")
	flagSet.StringVar(&atFlag, "at", "", "reference time for constraint evaluation (RFC 3339, default now)")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if object == "" || operation == "" {
		return fmt.Errorf("--object and --operation are required")
	}
	if (userID == "") == (tokenFile == "") {
		return fmt.Errorf("exactly one of --user or --token-file is required")
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

	ctx := context.Background()

	var subject *model.Session
	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", tokenFile, err)
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("decoding %s: %w", tokenFile, err)
		}
		public, _, err := sessiontoken.LoadKeypair(cfg.Token.StateDir)
		if err != nil {
			return fmt.Errorf("loading verification key: %w", err)
		}
		token, err := sessiontoken.VerifyAt(public, raw, at)
		if err != nil {
			return err
		}
		subject = token.Session(at)
	} else {
		password, err := readPassword(passwordFile)
		if err != nil {
			return err
		}
		activator := &session.Activator{
			Store:    directory,
			Logger:   newLogger(cfg),
			DSDCache: newSDCache(cfg),
		}
		subject, err = activator.CreateSessionAt(ctx, session.Request{
			UserID:   userID,
			Password: password,
			Roles:    splitRoles(rolesFlag),
		}, at)
		if err != nil {
			return err
		}
	}

	manager := &access.Manager{
		Store:    directory,
		Logger:   newLogger(cfg),
		DSDCache: newSDCache(cfg),
	}
	allowed, err := manager.CheckAccess(ctx, subject, object, operation, objectID)
	if err != nil {
		return err
	}

	target := object + "::" + operation
	if objectID != "" {
		target += "::" + objectID
	}
	if !allowed {
		fmt.Printf("DENY  %s for %s (active roles: %s)\n",
			target, subject.UserID, roleList(subject))
		return &denyError{message: "access denied"}
	}
	fmt.Printf("ALLOW %s for %s (active roles: %s)\n",
		target, subject.UserID, roleList(subject))
	return nil
}

func roleList(s *model.Session) string {
	names := s.RoleNames()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
