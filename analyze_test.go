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

// fakeDisk is an in-memory DiskInterface: mtimes are assigned explicitly by
// tests instead of being read off a real filesystem.
type fakeDisk struct {
	mtimes map[string]Mtime
	dirs   map[string]bool
	files  map[string][]byte
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{mtimes: map[string]Mtime{}, dirs: map[string]bool{}, files: map[string][]byte{}}
}

func (d *fakeDisk) Stat(path string) (Mtime, error) {
	if mt, ok := d.mtimes[path]; ok {
		return mt, nil
	}
	return Mtime{Nsec: MtimeMissing}, nil
}

func (d *fakeDisk) MakeDirs(path string) error {
	d.dirs[path] = true
	return nil
}

func (d *fakeDisk) WriteFile(path string, content []byte) error {
	d.files[path] = content
	return nil
}

func (d *fakeDisk) RemoveFile(path string) error {
	delete(d.files, path)
	return nil
}

func (d *fakeDisk) touch(path string, sec int64) {
	d.mtimes[path] = Mtime{Sec: sec}
}

func buildGraph(disk *fakeDisk, state *State, rule *Rule, out string, ins ...string) *Edge {
	e := state.AddEdge(rule)
	state.AddOut(e, out)
	for _, in := range ins {
		state.AddIn(e, in)
	}
	return e
}

func TestAnalyze_MissingOutputIsDirty(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	e := buildGraph(disk, state, rule, "out.o", "in.c")

	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	if !e.Outputs[0].Dirty {
		t.Fatal("expected missing output to be dirty")
	}
	if e.nblock != 0 {
		t.Fatalf("nblock = %d, want 0 (input is not itself dirty)", e.nblock)
	}
}

func TestAnalyze_UpToDateOutputIsClean(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	disk.touch("out.o", 2)
	e := buildGraph(disk, state, rule, "out.o", "in.c")

	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	if e.Outputs[0].Dirty {
		t.Fatal("expected up-to-date output to be clean")
	}
}

func TestAnalyze_OutputOlderThanInputIsDirty(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 5)
	disk.touch("out.o", 1)
	e := buildGraph(disk, state, rule, "out.o", "in.c")

	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	if !e.Outputs[0].Dirty {
		t.Fatal("expected stale output to be dirty")
	}
}

func TestAnalyze_TransitiveDirtyPropagates(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("a.c", 1)
	genA := buildGraph(disk, state, rule, "a.o", "a.c")
	// b.o depends on a.o, which is missing (never built), so b.o must end up
	// dirty and blocked on a.o even though b.o itself is newer than nothing.
	disk.touch("b.o", 100)
	final := buildGraph(disk, state, rule, "b.o", "a.o")
	_ = genA

	if err := analyze(disk, final); err != nil {
		t.Fatal(err)
	}
	if !final.Outputs[0].Dirty {
		t.Fatal("expected b.o to be dirty because a.o is missing")
	}
	if final.nblock != 1 {
		t.Fatalf("nblock = %d, want 1", final.nblock)
	}
}

func TestAnalyze_PhonyNotForcedDirtyByMtime(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	disk.touch("in.c", 1)
	disk.touch("all", 0) // older than in.c, but phony must not care
	e := buildGraph(disk, state, PhonyRule, "all", "in.c")

	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	if e.Outputs[0].Dirty {
		t.Fatal("phony edge with a clean input must not be forced dirty by mtime")
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	disk := newFakeDisk()
	state := NewState()
	rule := NewRule("cc")
	state.Bindings.AddRule(rule)
	disk.touch("in.c", 1)
	e := buildGraph(disk, state, rule, "out.o", "in.c")

	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	firstMark := e.mark
	if err := analyze(disk, e); err != nil {
		t.Fatal(err)
	}
	if e.mark != firstMark {
		t.Fatal("second analyze call must be a no-op")
	}
}

func TestMtime_Less(t *testing.T) {
	cases := []struct {
		a, b Mtime
		want bool
	}{
		{Mtime{Sec: 1}, Mtime{Sec: 2}, true},
		{Mtime{Sec: 2}, Mtime{Sec: 1}, false},
		{Mtime{Sec: 1, Nsec: 1}, Mtime{Sec: 1, Nsec: 2}, true},
		{Mtime{Sec: 1}, Mtime{Sec: 1}, false},
	}
	for _, c := range cases {
		if got := c.a.Less(c.b); got != c.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
