// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/admin"
	"github.com/bastion-auth/bastion/lib/seed"
)

func runSeed(args []string) error {
	var configPath string
	var filePath string
	var validateOnly bool

	flagSet := newFlagSet("bastion seed", &configPath)
	flagSet.StringVar(&filePath, "file", "", "path to the JSONC seed file")
	flagSet.BoolVar(&validateOnly, "validate", false, "validate the seed file without writing")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if filePath == "" {
		return fmt.Errorf("--file is required")
	}

	file, err := seed.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := file.Validate(); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	if validateOnly {
		fmt.Printf("%s: valid\n", filePath)
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	directory, closeDirectory, err := openDirectory(cfg)
	if err != nil {
		return err
	}
	defer closeDirectory()

	sdCache := newSDCache(cfg)
	manager := &admin.Manager{
		Store:    directory,
		Logger:   newLogger(cfg),
		SSDCache: sdCache,
		DSDCache: sdCache,
	}

	result, err := file.Apply(context.Background(), manager)
	if err != nil {
		return err
	}

	fmt.Printf("seeded: %d org units, %d policies, %d roles, %d admin roles, %d sd sets, %d objects, %d permissions, %d users, %d groups\n",
		result.OrgUnits, result.PwPolicies, result.Roles, result.AdminRoles,
		result.SDSets, result.PermObjects, result.Permissions, result.Users, result.Groups)
	return nil
}
