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

import "testing"

func newTestBuilder(disk DiskInterface, state *State) *Builder {
	return NewBuilder(state, disk, BuildConfig{Parallelism: 1, FailuresAllowed: 1, ConsolePoolDepth: 1})
}

func TestBuildAdd_QueuesReadyEdge(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	e := buildGraph(disk, state, rule, "out.o", "in.c")

	b := newTestBuilder(disk, state)
	target := state.GetNode("out.o")
	if err := b.BuildAdd(target); err != nil {
		t.Fatal(err)
	}
	if b.ready.empty() {
		t.Fatal("expected the edge to be queued, ready queue is empty")
	}
	if got := b.ready.popFront(); got != e {
		t.Fatalf("popped %v, want the generating edge", got)
	}
}

func TestBuildAdd_MissingSourceIsFatal(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	// "missing.c" has no generating edge and is never stat'd to exist.
	state.GetNode("missing.c")
	target := state.GetNode("missing.c")
	target.Dirty = true // simulate: node has no producer and was never found on disk

	b := newTestBuilder(disk, state)
	err := b.addSubtarget(target)
	if err == nil {
		t.Fatal("expected an error for a dirty node with no generating edge")
	}
}

func TestQueue_PoolOverflow(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	pool := NewPool("p", 1)
	state.AddPool(pool)
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)

	e1 := state.AddEdge(rule)
	e1.Pool = pool
	e2 := state.AddEdge(rule)
	e2.Pool = pool

	b := newTestBuilder(disk, state)
	b.queue(e1)
	b.queue(e2)

	if pool.running != 1 {
		t.Fatalf("pool.running = %d, want 1", pool.running)
	}
	if pool.overflow.empty() {
		t.Fatal("expected e2 to have overflowed into the pool's wait queue")
	}

	// Finishing e1 should admit e2 straight onto the ready queue without
	// touching the running count (it is simply handed the slot e1 held).
	b.release(e1)
	if !pool.overflow.empty() {
		t.Fatal("expected overflow queue to be drained")
	}
	if pool.running != 1 {
		t.Fatalf("pool.running after release = %d, want 1 (e2 now holds the slot)", pool.running)
	}
}

func TestNodeDone_UnblocksConsumer(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("a.c", 1)
	gen := buildGraph(disk, state, rule, "a.o", "a.c")
	disk.touch("b.o", 0)
	final := buildGraph(disk, state, rule, "b.o", "a.o")

	b := newTestBuilder(disk, state)
	if err := analyze(disk, final); err != nil {
		t.Fatal(err)
	}
	if final.nblock != 1 {
		t.Fatalf("nblock = %d, want 1", final.nblock)
	}

	aOut := gen.Outputs[0]
	b.nodeDone(aOut)
	if final.nblock != 0 {
		t.Fatalf("nblock after nodeDone = %d, want 0", final.nblock)
	}
	if b.ready.empty() {
		t.Fatal("expected final edge to be queued once its last blocking input cleared")
	}
}
