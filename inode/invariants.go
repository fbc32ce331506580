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

import "fmt"

// checkInvariants is wired into an InvariantMutex so every Lock/Unlock pair
// re-validates the table's consistency in builds that enable invariant
// checking, mirroring fs/fs.go's checkInvariants over its inode map.
func (t *Table) checkInvariants() {
	// INVARIANT: for all keys k, entries[k].Ino == k.
	for ino, e := range t.entries {
		if e.Ino != ino {
			panic(fmt.Sprintf("ino mismatch: key %d, entry.Ino %d", ino, e.Ino))
		}
	}

	// INVARIANT: inode 0 is never a key.
	if _, ok := t.entries[0]; ok {
		panic("inode 0 must never be present in the table")
	}

	// INVARIANT: root is present, is a directory, and is its own parent.
	root, ok := t.entries[RootIno]
	if !ok {
		panic("root inode is missing")
	}
	if ok {
		if root.Kind != KindDirectory {
			panic("root inode is not a directory")
		}
		if root.ParentIno != RootIno {
			panic("root inode is not its own parent")
		}
	}

	// INVARIANT: every entry's ParentIno names an existing directory.
	for ino, e := range t.entries {
		if ino == RootIno {
			continue
		}
		parent, ok := t.entries[e.ParentIno]
		if !ok {
			panic(fmt.Sprintf("entry %d has dangling parent %d", ino, e.ParentIno))
		}
		if parent.Kind != KindDirectory {
			panic(fmt.Sprintf("entry %d's parent %d is not a directory", ino, e.ParentIno))
		}
	}

	// INVARIANT: path index entries resolve back to the same inode via
	// reconstruction.
	for path, ino := range t.pathIndex {
		got, ok := t.reconstructPathLocked(ino)
		if !ok || got != path {
			panic(fmt.Sprintf("path index mismatch for %d: indexed %q, reconstructed %q (ok=%v)", ino, path, got, ok))
		}
	}
}
