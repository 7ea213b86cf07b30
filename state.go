// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nin

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// State is the in-memory build graph: every node and edge parsed from a
// manifest, plus the pools they may belong to. It outlives a single build;
// a Builder mutates flags and counters on top of it but never reshapes its
// topology.
type State struct {
	Paths    map[string]*Node
	Pools    map[string]*Pool
	Edges    []*Edge
	Bindings *BindingEnv
	Defaults []*Node
}

// NewState creates an empty graph with the phony rule and the default and
// console pools already registered.
func NewState() *State {
	s := &State{
		Paths:    map[string]*Node{},
		Pools:    map[string]*Pool{"": DefaultPool, "console": ConsolePool},
		Bindings: NewBindingEnv(nil),
	}
	s.Bindings.AddRule(PhonyRule)
	return s
}

// AddPool registers a newly parsed pool. The caller must already have
// checked no pool of that name exists.
func (s *State) AddPool(p *Pool) {
	s.Pools[p.Name] = p
}

// LookupPool returns the named pool, or nil.
func (s *State) LookupPool(name string) *Pool {
	return s.Pools[name]
}

// AddEdge creates an edge bound to rule, scoped to the graph's root
// environment until the parser overrides Env with an edge-local scope.
func (s *State) AddEdge(rule *Rule) *Edge {
	edge := &Edge{Rule: rule, Pool: DefaultPool, Env: s.Bindings}
	s.Edges = append(s.Edges, edge)
	return edge
}

// GetNode interns path, returning the existing node if one was already
// created for it.
func (s *State) GetNode(path string) *Node {
	if n, ok := s.Paths[path]; ok {
		return n
	}
	n := NewNode(path)
	s.Paths[path] = n
	return n
}

// LookupNode returns the node for path if it has been interned, else nil.
func (s *State) LookupNode(path string) *Node {
	return s.Paths[path]
}

// AddIn appends path as an input of edge, recording the consumer
// relationship for the dirty analyzer to pick up.
func (s *State) AddIn(edge *Edge, path string) {
	n := s.GetNode(path)
	edge.Inputs = append(edge.Inputs, n)
	n.nuse++
}

// AddOut appends path as an output of edge. It reports false without
// modifying the edge if another edge already generates that path — the
// parser decides whether that is a hard error or a warning.
func (s *State) AddOut(edge *Edge, path string) bool {
	n := s.GetNode(path)
	if n.In != nil {
		return false
	}
	edge.Outputs = append(edge.Outputs, n)
	n.In = edge
	return true
}

// AddDefault records path as a default target. Returns an error if path was
// never interned as a node.
func (s *State) AddDefault(path string) error {
	n := s.LookupNode(path)
	if n == nil {
		return fmt.Errorf("unknown target '%s'", path)
	}
	s.Defaults = append(s.Defaults, n)
	return nil
}

// RootNodes returns every output that is not itself consumed by another
// edge. It is an error (nil, err) for a non-empty graph to have none: that
// graph could only be a cycle of edges with no remaining root.
func (s *State) RootNodes() ([]*Node, error) {
	var roots []*Node
	for _, e := range s.Edges {
		for _, out := range e.Outputs {
			if len(out.Use) == 0 && out.nuse == 0 {
				roots = append(roots, out)
			}
		}
	}
	if len(s.Edges) != 0 && len(roots) == 0 {
		return nil, fmt.Errorf("could not determine root nodes of build graph")
	}
	return roots, nil
}

// DefaultNodes returns the manifest's declared default targets, or the
// graph's root nodes when none were declared.
func (s *State) DefaultNodes() ([]*Node, error) {
	if len(s.Defaults) != 0 {
		return s.Defaults, nil
	}
	return s.RootNodes()
}

// Reset restores every node and edge to the pre-analysis state, keeping
// topology (nodes, edges, pool membership) intact. Used between repeated
// builds against the same parsed graph, e.g. in tests.
func (s *State) Reset() {
	for _, n := range s.Paths {
		n.resetState()
	}
	for _, e := range s.Edges {
		e.mark = 0
		e.nblock = 0
	}
	for _, p := range s.Pools {
		p.running = 0
		p.overflow = edgeQueue{}
	}
}

// SpellcheckNode suggests the closest known path to an unknown target,
// or "" if nothing is close enough to be useful.
func (s *State) SpellcheckNode(path string) string {
	const maxDistance = 3
	best := maxDistance + 1
	result := ""
	for p := range s.Paths {
		if d := levenshtein.ComputeDistance(p, path); d < best {
			best = d
			result = p
		}
	}
	return result
}

// SpellcheckRule suggests the closest known rule name to an unknown one.
func (s *State) SpellcheckRule(name string) string {
	const maxDistance = 3
	best := maxDistance + 1
	result := ""
	for n := range s.Bindings.Rules {
		if d := levenshtein.ComputeDistance(n, name); d < best {
			best = d
			result = n
		}
	}
	return result
}
