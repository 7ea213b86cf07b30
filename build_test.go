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
	"context"
	"testing"
)

func TestBuilder_DryRunMarksEverythingDoneWithoutSpawning(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	rule.Bindings["command"] = &EvalString{Parsed: []evalToken{{text: "this-binary-does-not-exist"}}}
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	buildGraph(disk, state, rule, "out.o", "in.c")

	b := NewBuilder(state, disk, BuildConfig{Parallelism: 2, FailuresAllowed: 1, ConsolePoolDepth: 1, DryRun: true})
	target := state.GetNode("out.o")
	ran, err := b.Run(context.Background(), []*Node{target})
	if err != nil {
		t.Fatal(err)
	}
	if ran != 1 {
		t.Fatalf("ran = %d, want 1", ran)
	}
}

func TestBuilder_PhonyWithCleanInputsRunsNothing(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	disk.touch("in.c", 1)
	buildGraph(disk, state, PhonyRule, "all", "in.c")

	b := NewBuilder(state, disk, DefaultBuildConfig())
	target := state.GetNode("all")
	ran, err := b.Run(context.Background(), []*Node{target})
	if err != nil {
		t.Fatal(err)
	}
	// "all" is phony and its only input already exists: the missing "all"
	// mtime must not, by itself, force a rebuild (it is grouping syntax,
	// not a real file).
	if ran != 0 {
		t.Fatalf("ran = %d, want 0", ran)
	}
}

func TestBuilder_PhonyPropagatesDirtyInput(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	rule.Bindings["command"] = &EvalString{}
	state.Bindings.AddRule(rule)
	disk.touch("a.c", 1)
	// a.o is never built (missing), so its generating edge is dirty, and
	// that dirtiness must propagate through the phony "all" grouping edge
	// even though phony edges are never forced dirty by mtime on their own
	// account.
	buildGraph(disk, state, rule, "a.o", "a.c")
	buildGraph(disk, state, PhonyRule, "all", "a.o")

	b := NewBuilder(state, disk, BuildConfig{Parallelism: 2, FailuresAllowed: 1, ConsolePoolDepth: 1, DryRun: true})
	target := state.GetNode("all")
	ran, err := b.Run(context.Background(), []*Node{target})
	if err != nil {
		t.Fatal(err)
	}
	if ran != 2 {
		t.Fatalf("ran = %d, want 2 (a.o's real edge plus the phony grouping edge)", ran)
	}
}

func TestBuilder_UpToDateTargetRunsNothing(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	disk.touch("out.o", 2)
	buildGraph(disk, state, rule, "out.o", "in.c")

	b := NewBuilder(state, disk, DefaultBuildConfig())
	target := state.GetNode("out.o")
	ran, err := b.Run(context.Background(), []*Node{target})
	if err != nil {
		t.Fatal(err)
	}
	if ran != 0 {
		t.Fatalf("ran = %d, want 0", ran)
	}
}

func TestBuilder_MissingCommandFailsJobStartWithoutSpawning(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("nocmd") // no "command" binding at all
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	buildGraph(disk, state, rule, "out.o", "in.c")

	b := NewBuilder(state, disk, BuildConfig{Parallelism: 1, FailuresAllowed: 0, ConsolePoolDepth: 1})
	target := state.GetNode("out.o")
	ran, err := b.Run(context.Background(), []*Node{target})
	if err == nil {
		t.Fatal("expected an error for a rule with no command")
	}
	if ran != 1 {
		t.Fatalf("ran = %d, want 1 (the failed job-start still counts as handled)", ran)
	}
	if b.failed != 1 {
		t.Fatalf("failed = %d, want 1", b.failed)
	}
}

func TestBuilder_ResponseFileRemovedAfterCompletion(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("link")
	rule.Bindings["command"] = &EvalString{Parsed: []evalToken{{text: "true"}}}
	rule.Bindings["rspfile"] = &EvalString{Parsed: []evalToken{{text: "out.rsp"}}}
	rule.Bindings["rspfile_content"] = &EvalString{Parsed: []evalToken{{text: "in.o"}}}
	state.Bindings.AddRule(rule)
	disk.touch("in.o", 1)
	buildGraph(disk, state, rule, "out.o", "in.o")

	b := NewBuilder(state, disk, BuildConfig{Parallelism: 1, FailuresAllowed: 1, ConsolePoolDepth: 1})
	target := state.GetNode("out.o")
	if _, err := b.Run(context.Background(), []*Node{target}); err != nil {
		t.Fatal(err)
	}
	if _, exists := disk.files["out.rsp"]; exists {
		t.Fatal("response file must not survive a successful build")
	}
}

func TestBuilder_ResponseFileRemovedAfterJobStartFailure(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("nocmd")
	rule.Bindings["rspfile"] = &EvalString{Parsed: []evalToken{{text: "out.rsp"}}}
	rule.Bindings["rspfile_content"] = &EvalString{Parsed: []evalToken{{text: "in.o"}}}
	state.Bindings.AddRule(rule)
	disk.touch("in.o", 1)
	buildGraph(disk, state, rule, "out.o", "in.o")

	b := NewBuilder(state, disk, BuildConfig{Parallelism: 1, FailuresAllowed: 0, ConsolePoolDepth: 1})
	target := state.GetNode("out.o")
	if _, err := b.Run(context.Background(), []*Node{target}); err == nil {
		t.Fatal("expected an error for a rule with no command")
	}
	if _, exists := disk.files["out.rsp"]; exists {
		t.Fatal("response file must be unlinked when the job never starts")
	}
}

func TestBuildConfig_ValidateRejectsZeroParallelism(t *testing.T) {
	c := BuildConfig{Parallelism: 0, FailuresAllowed: 1, ConsolePoolDepth: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for zero parallelism")
	}
}
