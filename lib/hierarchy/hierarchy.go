// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package hierarchy computes transitive closures over the role
// inheritance graph.
//
// Roles form a directed acyclic graph of child→parent edges with
// multiple inheritance: a role may have several parents, and parents
// are senior. The graph is rebuilt from the entity store on every
// operation that needs it — the directory is the source of truth and
// may change between calls, so closures are memoized within one Graph
// value and never shared across calls.
//
// Cycle protection happens at admin-mutation time (WouldCycle);
// traversal assumes the stored graph is acyclic.
package hierarchy

import (
	"context"
	"sort"

	"github.com/bastion-auth/bastion/lib/model"
)

// RoleSource supplies the role records whose parent lists define the
// graph. Both the full Directory interface and narrower test fixtures
// satisfy it.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]model.Role, error)
}

// Graph is the child→parent adjacency of the role hierarchy, with
// per-instance memoization of closures. A Graph is built for one
// operation and discarded; it is not safe for concurrent use.
type Graph struct {
	parents  map[string][]string
	children map[string][]string

	// Closure memos, keyed by normalized role name. Valid for the
	// lifetime of this Graph only.
	ascMemo  map[string]map[string]bool
	descMemo map[string]map[string]bool
}

// New builds a Graph from explicit role records.
func New(roles []model.Role) *Graph {
	g := &Graph{
		parents:  make(map[string][]string, len(roles)),
		children: make(map[string][]string),
		ascMemo:  make(map[string]map[string]bool),
		descMemo: make(map[string]map[string]bool),
	}
	for _, role := range roles {
		child := model.Normalize(role.Name)
		if _, ok := g.parents[child]; !ok {
			g.parents[child] = nil
		}
		for _, parent := range role.Parents {
			p := model.Normalize(parent)
			g.parents[child] = append(g.parents[child], p)
			g.children[p] = append(g.children[p], child)
		}
	}
	return g
}

// Load reads the current role set from the source and builds a Graph.
func Load(ctx context.Context, source RoleSource) (*Graph, error) {
	roles, err := source.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	return New(roles), nil
}

// Contains reports whether the role exists in the graph.
func (g *Graph) Contains(role string) bool {
	_, ok := g.parents[model.Normalize(role)]
	return ok
}

// Ascendants returns the role and all of its parents, transitively.
// The result set is keyed by normalized name and must not be mutated:
// it is memoized within this Graph.
func (g *Graph) Ascendants(role string) map[string]bool {
	return g.closure(model.Normalize(role), g.parents, g.ascMemo)
}

// Descendants returns the role and all of its children, transitively.
// Same sharing rules as Ascendants.
func (g *Graph) Descendants(role string) map[string]bool {
	return g.closure(model.Normalize(role), g.children, g.descMemo)
}

// AscendantNames returns the ascendant closure, excluding the role
// itself, as a sorted slice. Convenience for review queries.
func (g *Graph) AscendantNames(role string) []string {
	return closureNames(g.Ascendants(role), model.Normalize(role))
}

// DescendantNames returns the descendant closure, excluding the role
// itself, as a sorted slice.
func (g *Graph) DescendantNames(role string) []string {
	return closureNames(g.Descendants(role), model.Normalize(role))
}

// WouldCycle reports whether adding parent as a new parent of child
// would create a cycle: true when child is already an ascendant of
// parent (or the two are the same role). Admin mutations must call
// this before persisting an inheritance edge.
func (g *Graph) WouldCycle(child, parent string) bool {
	c := model.Normalize(child)
	p := model.Normalize(parent)
	if c == p {
		return true
	}
	return g.Ascendants(parent)[c]
}

// closure is an iterative transitive traversal over the given
// adjacency, seeded with the role itself.
func (g *Graph) closure(seed string, adjacency map[string][]string, memo map[string]map[string]bool) map[string]bool {
	if cached, ok := memo[seed]; ok {
		return cached
	}
	result := map[string]bool{seed: true}
	stack := []string{seed}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adjacency[current] {
			if !result[next] {
				result[next] = true
				stack = append(stack, next)
			}
		}
	}
	memo[seed] = result
	return result
}

// closureNames flattens a closure set to a sorted slice, omitting the
// seed role.
func closureNames(closure map[string]bool, seed string) []string {
	names := make([]string, 0, len(closure))
	for name := range closure {
		if name != seed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
