// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/review"
)

func runReview(args []string) error {
	var configPath string
	var userID string
	var roleName string

	flagSet := newFlagSet("bastion review", &configPath)
	flagSet.StringVar(&userID, "user", "", "inspect this user's roles and permissions")
	flagSet.StringVar(&roleName, "role", "", "inspect this role's members and permissions")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if (userID == "") == (roleName == "") {
		return fmt.Errorf("exactly one of --user or --role is required")
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

	manager := &review.Manager{
		Store:    directory,
		SSDCache: newSDCache(cfg),
	}
	ctx := context.Background()
	if userID != "" {
		return reviewUser(ctx, manager, userID)
	}
	return reviewRole(ctx, manager, roleName)
}

func reviewUser(ctx context.Context, manager *review.Manager, userID string) error {
	user, err := manager.ReadUser(ctx, userID)
	if err != nil {
		return err
	}
	assigned, err := manager.AssignedRoles(ctx, userID)
	if err != nil {
		return err
	}
	authorized, err := manager.AuthorizedRoles(ctx, userID)
	if err != nil {
		return err
	}
	permissions, err := manager.UserPermissions(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("user %s (org unit: %s)\n", user.ID, user.OrgUnit)
	names := make([]string, len(assigned))
	for i, binding := range assigned {
		names[i] = binding.Role
	}
	fmt.Printf("  assigned roles:   %s\n", nameList(names))
	fmt.Printf("  authorized roles: %s\n", nameList(authorized))
	fmt.Printf("  permissions:\n")
	printPermissions(permissions)
	return nil
}

func reviewRole(ctx context.Context, manager *review.Manager, roleName string) error {
	role, err := manager.ReadRole(ctx, roleName)
	if err != nil {
		return err
	}
	assigned, err := manager.AssignedUsers(ctx, roleName)
	if err != nil {
		return err
	}
	authorized, err := manager.AuthorizedUsers(ctx, roleName)
	if err != nil {
		return err
	}
	permissions, err := manager.RolePermissions(ctx, roleName)
	if err != nil {
		return err
	}

	fmt.Printf("role %s (parents: %s)\n", role.Name, nameList(role.Parents))
	fmt.Printf("  assigned users:   %s\n", nameList(assigned))
	fmt.Printf("  authorized users: %s\n", nameList(authorized))
	fmt.Printf("  permissions:\n")
	printPermissions(permissions)
	return nil
}

func printPermissions(permissions []model.Permission) {
	if len(permissions) == 0 {
		fmt.Printf("    none\n")
		return
	}
	for _, perm := range permissions {
		target := perm.Object + "::" + perm.Operation
		if perm.ObjectID != "" {
			target += "::" + perm.ObjectID
		}
		fmt.Printf("    %s\n", target)
	}
}

func nameList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
