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

// edgeMark is the three-flag bitfield tracking how far analysis/scheduling
// has carried an edge: statAnalyzed once analyze has visited it,
// hashComputed is reserved for a command-hash collaborator this core does
// not implement, scheduled once addSubtarget has selected it for this build
// (whether it was queued at once or still waits on blocking inputs).
type edgeMark uint8

const (
	markStat edgeMark = 1 << iota
	markHash
	markScheduled
)

// Edge represents one action: a rule invocation over a set of inputs and
// outputs, scoped to an environment and (optionally) a concurrency pool.
//
// Inputs are partitioned into three contiguous zones by two counts: the
// first len(Inputs)-ImplicitDeps-OrderOnlyDeps entries are explicit, the
// next ImplicitDeps are implicit, and the last OrderOnlyDeps are order-only.
// Outputs are partitioned the same way: the last ImplicitOuts are implicit.
type Edge struct {
	Rule *Rule
	Pool *Pool
	Env  *BindingEnv

	Outputs      []*Node
	ImplicitOuts int32

	Inputs        []*Node
	ImplicitDeps  int32
	OrderOnlyDeps int32

	mark  edgeMark
	nblock int

	// next threads this edge onto the global ready queue. It is only valid
	// while the edge is enqueued.
	next *Edge
}

// explicitOutEnd is the index at which implicit outputs begin.
func (e *Edge) explicitOutEnd() int {
	return len(e.Outputs) - int(e.ImplicitOuts)
}

// orderOnlyStart is the index at which order-only inputs begin; inputs
// before it (explicit + implicit) participate in dirtiness/newest-input
// detection, inputs at or after it do not.
func (e *Edge) orderOnlyStart() int {
	return len(e.Inputs) - int(e.OrderOnlyDeps)
}

// IsPhony reports whether the edge is bound to the phony sentinel rule,
// which never spawns a process.
func (e *Edge) IsPhony() bool {
	return e.Rule == PhonyRule
}

// UseConsole reports whether the edge is scheduled on the console pool,
// which shares the controlling terminal and forces exclusivity.
func (e *Edge) UseConsole() bool {
	return e.Pool == ConsolePool
}

// GetBinding resolves a rule variable through the edge's environment,
// honoring edge-local overrides before the rule's own binding.
func (e *Edge) GetBinding(key string) string {
	return e.Env.LookupWithFallback(key, e.bindingEval(key), e.Env)
}

// GetBindingOrDefault is GetBinding with a default for an absent binding.
func (e *Edge) GetBindingOrDefault(key, def string) string {
	if v := e.GetBinding(key); v != "" {
		return v
	}
	return def
}

func (e *Edge) bindingEval(key string) *EvalString {
	if e.Rule == nil {
		return nil
	}
	return e.Rule.GetBinding(key)
}

// EvaluateCommand expands the rule's "command" binding.
func (e *Edge) EvaluateCommand() string {
	return e.GetBinding("command")
}

// outputsString joins the edge's output paths for diagnostics.
func (e *Edge) outputsString() string {
	s := ""
	for i, o := range e.Outputs {
		if i > 0 {
			s += " "
		}
		s += o.Path
	}
	return s
}
