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

// Mtime sentinel values, stored in the nanosecond field. These mirror
// samurai's MTIME_UNKNOWN / MTIME_MISSING so a zero Mtime always means
// "the epoch", never "unset".
const (
	MtimeUnknown int64 = -1
	MtimeMissing int64 = -2
)

// Mtime is a tri-state file modification time: a real (sec, nsec) pair,
// MtimeUnknown before the node has been stat'd, or MtimeMissing once a stat
// found no file.
type Mtime struct {
	Sec  int64
	Nsec int64
}

// Less reports whether m is strictly older than other. Ties (equal sec and
// nsec) are not "less" — spec rebuild triggers only on strictly-newer.
func (m Mtime) Less(other Mtime) bool {
	if m.Sec != other.Sec {
		return m.Sec < other.Sec
	}
	return m.Nsec < other.Nsec
}

// Node represents one file, or virtual target, tracked by the build graph.
type Node struct {
	Path string

	Mtime Mtime

	// Dirty is authoritative once analysis has reached this node; it is
	// cleared again when the generating edge finishes successfully.
	Dirty bool

	// In is the unique edge that produces this node, or nil for a source
	// file with no generator.
	In *Edge

	// Use lists the edges that consume this node as an input. It is
	// allocated lazily on the first analysis pass that reaches the node,
	// sized to the consumer count counted while the manifest was parsed.
	Use []*Edge

	// nuse is the number of consumer edges counted during parsing, used to
	// size Use on first allocation. It is not decremented afterwards.
	nuse int

	// CommandHash is carried from a persistent build log for a collaborator
	// that is not part of this engine; the core reads it but never
	// interprets or writes it.
	CommandHash uint64
}

// NewNode creates a node for path with no known mtime.
func NewNode(path string) *Node {
	return &Node{Path: path, Mtime: Mtime{Nsec: MtimeUnknown}}
}

// StatKnown reports whether the node's mtime has been queried from disk.
func (n *Node) StatKnown() bool {
	return n.Mtime.Nsec != MtimeUnknown
}

// Missing reports whether the node was stat'd and does not exist on disk.
func (n *Node) Missing() bool {
	return n.Mtime.Nsec == MtimeMissing
}

// addUse registers edge as a consumer of n, allocating Use on first use per
// the nuse count established during parsing.
func (n *Node) addUse(edge *Edge) {
	if n.nuse > 0 && n.Use == nil {
		n.Use = make([]*Edge, 0, n.nuse)
	}
	n.Use = append(n.Use, edge)
}

// resetState restores a node to the pre-analysis state, keeping identity
// (path, generator, consumer list) but forgetting anything analysis or a
// prior build computed.
func (n *Node) resetState() {
	n.Mtime = Mtime{Nsec: MtimeUnknown}
	n.Dirty = false
}
