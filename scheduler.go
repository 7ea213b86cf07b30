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

import "fmt"

// BuildAdd registers n as a requested build target: it analyzes n's
// generating edge (or simply stats n if it has none) and walks the
// resulting dirty subgraph, placing every edge whose blocking-input count
// has already reached zero onto the ready queue.
func (b *Builder) BuildAdd(n *Node) error {
	if n.In != nil {
		if err := analyze(b.Disk, n.In); err != nil {
			return err
		}
	} else {
		if !n.StatKnown() {
			if err := nodestat(b.Disk, n); err != nil {
				return err
			}
		}
		n.Dirty = n.Missing()
	}
	return b.addSubtarget(n)
}

// addSubtarget recursively schedules n's generating edge (if n is dirty)
// and descends into that edge's own inputs. A clean node terminates the
// descent. No cycle detection is performed: a cyclic dirty subgraph is an
// open question this engine inherits from its lineage (see DESIGN.md).
func (b *Builder) addSubtarget(n *Node) error {
	if !n.Dirty {
		return nil
	}
	e := n.In
	if e == nil {
		return fmt.Errorf("file is missing and not created by any action: '%s'", n.Path)
	}
	if e.mark&markScheduled != 0 {
		return nil
	}
	e.mark |= markScheduled
	if e.nblock == 0 {
		b.queue(e)
	}
	for _, in := range e.Inputs {
		if err := b.addSubtarget(in); err != nil {
			return err
		}
	}
	return nil
}

// queue places e on the global ready queue, or on its pool's overflow
// queue if the pool has no spare capacity right now.
func (b *Builder) queue(e *Edge) {
	if e.Pool == nil || e.Pool.Depth == 0 || e.Pool.running < e.Pool.Depth {
		b.ready.pushFront(e)
		if e.Pool != nil && e.Pool.Depth != 0 {
			e.Pool.running++
		}
		return
	}
	e.Pool.overflow.pushBack(e)
}

// release is called when an edge belonging to a pool finishes: it admits
// the next overflow edge into the pool's running set (handing it straight
// to the ready queue, running count unchanged), or decrements the running
// count if the overflow queue was empty.
func (b *Builder) release(e *Edge) {
	p := e.Pool
	if p == nil || p.Depth == 0 {
		return
	}
	if next := p.overflow.popFront(); next != nil {
		b.ready.pushFront(next)
		return
	}
	p.running--
}

// nodeDone clears n's dirty flag and decrements nblock on every edge that
// consumes n, queueing any consumer whose last blocking input this just
// satisfied.
func (b *Builder) nodeDone(n *Node) {
	n.Dirty = false
	if n.Use == nil {
		return
	}
	for _, e := range n.Use {
		if e.nblock > 0 {
			e.nblock--
			if e.nblock == 0 {
				b.queue(e)
			}
		}
	}
}
