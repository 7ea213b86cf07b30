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

// analyze computes nblock for edge and the Dirty flag for every output
// reachable from it, recursively analyzing the generating edges of its
// inputs. It is idempotent: once an edge is marked statAnalyzed, later
// calls are no-ops, which is what lets a diamond-shaped graph be walked
// once per edge no matter how many paths reach it.
func analyze(disk DiskInterface, e *Edge) error {
	if e.mark&markStat != 0 {
		return nil
	}
	e.mark |= markStat

	for _, out := range e.Outputs {
		if !out.StatKnown() {
			if err := nodestat(disk, out); err != nil {
				return err
			}
		}
	}

	dirty := false
	var newest *Node
	orderOnly := e.orderOnlyStart()
	for i, in := range e.Inputs {
		in.addUse(e)

		if !in.StatKnown() {
			if err := nodestat(disk, in); err != nil {
				return err
			}
			if in.In != nil {
				if err := analyze(disk, in.In); err != nil {
					return err
				}
			} else {
				in.Dirty = in.Missing()
			}
		}

		if !dirty && i < orderOnly {
			if in.Dirty {
				dirty = true
			} else if !in.Missing() && (newest == nil || newest.Mtime.Less(in.Mtime)) {
				newest = in
			}
		}
	}

	// All outputs are dirty if any of them is missing, or if any of them is
	// older than the newest explicit-or-implicit input — except a phony
	// edge that has at least one input is never forced dirty by mtimes.
	for _, out := range e.Outputs {
		if dirty {
			break
		}
		if e.IsPhony() && len(e.Inputs) > 0 {
			continue
		}
		if out.Missing() || newerThan(newest, out) {
			dirty = true
		}
	}

	for _, out := range e.Outputs {
		out.Dirty = dirty
	}

	if dirty {
		e.nblock = 0
		for _, in := range e.Inputs {
			if in.Dirty {
				e.nblock++
			}
		}
	} else {
		e.nblock = 0
	}
	return nil
}

// newerThan reports whether a's mtime is strictly after b's mtime; nil
// never counts as newer than anything.
func newerThan(a, b *Node) bool {
	if a == nil {
		return false
	}
	return b.Mtime.Less(a.Mtime)
}
