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

package fs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// dirHandleEntry snapshots a directory's children at open time. Unlike
// gcsfuse's GCS-backed dirHandle, there is no continuation token to thread
// through: materializeTorrent has already made the full child list
// available synchronously, so one snapshot per handle is enough to serve
// every ReadDir call against it with a stable, seekable offset space.
type dirHandleEntry struct {
	Ino      fuseops.InodeID
	Children []inode.ChildEntry
}

type dirHandleTable struct {
	next atomic.Uint64

	mu      sync.Mutex
	entries map[fuseops.HandleID]*dirHandleEntry
}

func newDirHandleTable() *dirHandleTable {
	return &dirHandleTable{entries: make(map[fuseops.HandleID]*dirHandleEntry)}
}

func (t *dirHandleTable) open(ino fuseops.InodeID, children []inode.ChildEntry) fuseops.HandleID {
	h := fuseops.HandleID(t.next.Add(1))

	t.mu.Lock()
	t.entries[h] = &dirHandleEntry{Ino: ino, Children: children}
	t.mu.Unlock()

	return h
}

func (t *dirHandleTable) get(h fuseops.HandleID) (*dirHandleEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	return e, ok
}

func (t *dirHandleTable) release(h fuseops.HandleID) {
	t.mu.Lock()
	delete(t.entries, h)
	t.mu.Unlock()
}

// OpenDir validates the inode and snapshots its children into a fresh
// handle.
func (f *fsImpl) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	e := f.inodes.Get(uint64(op.Inode))
	if e == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "inode not found"))
	}
	if e.Kind != inode.KindDirectory {
		return toErrno(apierr.New(apierr.KindTypeMismatch, "not a directory"))
	}

	children := f.inodes.GetChildren(uint64(op.Inode))
	op.Handle = f.dirHandles.open(op.Inode, children)
	return nil
}

// ReadDir serves entries in the fixed order described in §4.E: "." at
// offset 0, ".." at offset 1, then children in their stored order from
// offset 2, stopping as soon as a dirent would not fit in the reply buffer.
func (f *fsImpl) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	dh, ok := f.dirHandles.get(op.Handle)
	if !ok {
		return toErrno(apierr.New(apierr.KindBadHandle, "unknown directory handle"))
	}

	parent := f.inodes.Get(uint64(dh.Ino))
	if parent == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "directory no longer exists"))
	}

	offset := int(op.Offset)

	for {
		var d fuseutil.Dirent
		switch {
		case offset == 0:
			d = fuseutil.Dirent{Offset: 1, Inode: op.Inode, Name: ".", Type: fuseutil.DT_Directory}
		case offset == 1:
			d = fuseutil.Dirent{Offset: 2, Inode: fuseops.InodeID(parent.ParentIno), Name: "..", Type: fuseutil.DT_Directory}
		default:
			idx := offset - 2
			if idx >= len(dh.Children) {
				return nil
			}
			child := dh.Children[idx]
			d = fuseutil.Dirent{
				Offset: fuseops.DirOffset(offset + 1),
				Inode:  fuseops.InodeID(child.Ino),
				Name:   child.Entry.Name,
				Type:   direntType(child.Entry.Kind),
			}
		}

		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
		offset++
	}

	return nil
}

func direntType(k inode.Kind) fuseutil.DirentType {
	switch k {
	case inode.KindDirectory:
		return fuseutil.DT_Directory
	case inode.KindSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// ReleaseDirHandle drops the snapshot.
func (f *fsImpl) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	f.dirHandles.release(op.Handle)
	return nil
}
