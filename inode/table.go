// Copyright 2025 Google LLC
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

package inode

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jacobsa/syncutil"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// Table is the concurrent, atomically-consistent inode table (component B).
// All exported methods are safe for concurrent use.
type Table struct {
	mu syncutil.InvariantMutex

	entries map[uint64]*Entry // GUARDED_BY(mu)

	// pathIndex maps a reconstructed path ("/" for root) to its inode.
	// GUARDED_BY(mu)
	pathIndex map[string]uint64

	// torrentIndex maps a torrent id to the inode materialized for its
	// root (a File for single-file torrents, a Directory otherwise).
	// GUARDED_BY(mu)
	torrentIndex map[uint64]uint64

	// nextIno is bumped with an atomic fetch-and-add ahead of acquiring
	// mu, per the allocation algorithm in the inode table's contract.
	nextIno atomic.Uint64

	maxInodes uint64 // 0 means unbounded
}

// NewTable creates a table pre-populated with the root directory at inode 1,
// its own parent. maxInodes of 0 means no cap.
func NewTable(maxInodes uint64) *Table {
	t := &Table{
		entries:      make(map[uint64]*Entry),
		pathIndex:    make(map[string]uint64),
		torrentIndex: make(map[uint64]uint64),
		maxInodes:    maxInodes,
	}
	t.nextIno.Store(firstAllocatedIno)

	root := &Entry{
		Ino:       RootIno,
		Kind:      KindDirectory,
		Name:      "",
		ParentIno: RootIno,
	}
	t.entries[RootIno] = root
	t.pathIndex["/"] = RootIno

	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// Allocate assigns the entry the next inode, inserts it into the primary map
// first, then — only when trackAsTorrentRoot is set — maps entry.TorrentID
// to the new inode in the torrent reverse index. The caller supplies
// entry with Ino left at zero; Allocate fills it in and returns it.
func (t *Table) Allocate(entry *Entry, trackAsTorrentRoot bool) (uint64, error) {
	ino := t.nextIno.Add(1) - 1

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxInodes != 0 && uint64(len(t.entries)) >= t.maxInodes {
		return 0, apierr.New(apierr.KindOutOfResources, "inode table is at capacity")
	}

	entry.Ino = ino
	if _, exists := t.entries[ino]; exists {
		panic(fmt.Sprintf("inode collision on %d: counter corruption", ino))
	}
	t.entries[ino] = entry

	if trackAsTorrentRoot {
		t.torrentIndex[entry.TorrentID] = ino
	}

	return ino, nil
}

// Get returns a copy of the entry for ino, or nil if it does not exist.
func (t *Table) Get(ino uint64) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ino]
	if !ok {
		return nil
	}
	return e.Clone()
}

// LookupByPath resolves a slash-separated path (rooted, e.g. "/a/b") to an
// inode via the reverse index built by path reconstruction.
func (t *Table) LookupByPath(path string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ino, ok := t.pathIndex[path]
	return ino, ok
}

// LookupTorrent returns the inode materialized for torrentID's root, if any.
func (t *Table) LookupTorrent(torrentID uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ino, ok := t.torrentIndex[torrentID]
	return ino, ok
}

// AddChild appends childIno to parentIno's children list if not already
// present. It is a no-op if parentIno does not name a directory. Calling
// this after Allocate also refreshes the path index entry for the child,
// since the child's name only becomes resolvable via path once it is
// linked into its parent.
func (t *Table) AddChild(parentIno, childIno uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.entries[parentIno]
	if !ok || parent.Kind != KindDirectory {
		return
	}

	for _, c := range parent.Children {
		if c == childIno {
			return
		}
	}
	parent.Children = append(parent.Children, childIno)

	t.refreshPathIndexLocked(childIno)
}

// refreshPathIndexLocked recomputes and stores the path index entry for
// ino. Must be called with mu held.
func (t *Table) refreshPathIndexLocked(ino uint64) {
	path, ok := t.reconstructPathLocked(ino)
	if !ok {
		return
	}
	t.pathIndex[path] = ino
}

// reconstructPathLocked walks from ino to the root following ParentIno,
// iteratively (never recursively, to keep the stack bounded regardless of
// nesting depth), collecting names, then reverses them into a path.
func (t *Table) reconstructPathLocked(ino uint64) (string, bool) {
	var names []string
	cur := ino
	for {
		e, ok := t.entries[cur]
		if !ok {
			return "", false
		}
		if cur == RootIno {
			break
		}
		names = append(names, e.Name)
		cur = e.ParentIno
	}
	if len(names) == 0 {
		return "/", true
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return "/" + strings.Join(names, "/"), true
}

// ChildEntry pairs an inode with the entry it names, returned by
// GetChildren.
type ChildEntry struct {
	Ino   uint64
	Entry *Entry
}

// GetChildren returns the ordered children of parentIno. If the stored
// children list is non-empty it is used directly; otherwise a full-table
// scan filtering by ParentIno covers the window between a child's primary
// insertion and its parent's children-list append (see the mutual
// containment invariant).
func (t *Table) GetChildren(parentIno uint64) []ChildEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.entries[parentIno]
	if !ok || parent.Kind != KindDirectory {
		return nil
	}

	if len(parent.Children) > 0 {
		out := make([]ChildEntry, 0, len(parent.Children))
		for _, ino := range parent.Children {
			e, ok := t.entries[ino]
			if !ok {
				// Torn down mid-removal; remove_subtree deletes children
				// before the parent, so readers tolerate a dangling ino.
				continue
			}
			out = append(out, ChildEntry{Ino: ino, Entry: e})
		}
		return out
	}

	var out []ChildEntry
	for ino, e := range t.entries {
		if ino != parentIno && e.ParentIno == parentIno {
			out = append(out, ChildEntry{Ino: ino, Entry: e})
		}
	}
	return out
}

// RemoveSubtree removes ino and all of its descendants, children first,
// updating the parent's children list and every secondary index. It
// refuses to remove the root.
func (t *Table) RemoveSubtree(ino uint64) error {
	if ino == RootIno {
		return apierr.New(apierr.KindInvalidArgument, "refusing to remove the root inode")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	root, ok := t.entries[ino]
	if !ok {
		return nil
	}
	rootParentIno := root.ParentIno

	// Iterative post-order traversal via an explicit worklist, never
	// recursion, to keep the stack bounded on pathological nesting depth.
	var order []uint64
	stack := []uint64{ino}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, cur)
		if e, ok := t.entries[cur]; ok {
			stack = append(stack, e.Children...)
		}
	}

	// Delete children before parents: walk order in reverse, since order
	// was produced root-first.
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]
		if _, ok := t.entries[cur]; !ok {
			continue
		}
		delete(t.entries, cur)
		for path, pIno := range t.pathIndex {
			if pIno == cur {
				delete(t.pathIndex, path)
				break
			}
		}
		for tid, tIno := range t.torrentIndex {
			if tIno == cur {
				delete(t.torrentIndex, tid)
				break
			}
		}
	}

	if parent, ok := t.entries[rootParentIno]; ok {
		parent.Children = removeIno(parent.Children, ino)
	}

	return nil
}

func removeIno(children []uint64, target uint64) []uint64 {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of live entries, used to feed the live-inodes
// gauge.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
