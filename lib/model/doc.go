// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package model defines the entity types shared by every bastion
// component: users, roles, administrative roles, permissions,
// organizational units, separation-of-duty sets, groups, password
// policies, temporal constraints, and sessions.
//
// Entities are plain data. Behavior lives in the packages that consume
// them: lib/constraint evaluates Constraint blocks, lib/hierarchy
// traverses role parentage, lib/sod evaluates SDSet membership, and
// lib/session assembles Sessions. The entity store (lib/store) owns
// persistence; a Session is the only entity that is never persisted.
//
// # Identifier folding
//
// User identifiers and role names are case-insensitive unique keys.
// Normalize is the single folding function — every package that keys a
// map or compares identifiers uses it, so "CostAnalyst" and
// "costanalyst" are the same role everywhere or nowhere.
package model
