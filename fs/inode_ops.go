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
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// attributesFor fills in a fuseops.InodeAttributes for entry, following the
// fixed permission/ownership scheme in §4.E: directories 0555, files 0444,
// symlinks 0777, uid/gid the mounting process's own, mtime/ctime pinned to
// process start and atime free-running off the clock.
func (f *fsImpl) attributesFor(e *inode.Entry) fuseops.InodeAttributes {
	attrs := fuseops.InodeAttributes{
		Nlink: 1,
		Uid:   uint32(os.Getuid()),
		Gid:   uint32(os.Getgid()),
		Atime: f.clock.Now(),
		Mtime: f.startedAt,
		Ctime: f.startedAt,
	}

	switch e.Kind {
	case inode.KindDirectory:
		attrs.Mode = os.ModeDir | 0555
		attrs.Nlink = 2
	case inode.KindFile:
		attrs.Mode = 0444
		attrs.Size = e.SizeBytes
	case inode.KindSymlink:
		attrs.Mode = os.ModeSymlink | 0777
		attrs.Size = uint64(len(e.TargetPath))
	}

	return attrs
}

// LookUpInode resolves (parent, name) to a child, including "." and "..".
func (f *fsImpl) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parent := f.inodes.Get(uint64(op.Parent))
	if parent == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "parent inode not found"))
	}
	if parent.Kind != inode.KindDirectory {
		return syscall.ENOTDIR
	}

	switch op.Name {
	case ".":
		return f.fillEntry(op.Parent, parent, &op.Entry)
	case "..":
		ancestor := f.inodes.Get(parent.ParentIno)
		if ancestor == nil {
			return toErrno(apierr.New(apierr.KindNotFound, "parent of parent not found"))
		}
		return f.fillEntry(fuseops.InodeID(parent.ParentIno), ancestor, &op.Entry)
	}

	for _, child := range f.inodes.GetChildren(uint64(op.Parent)) {
		if child.Entry.Name == op.Name {
			return f.fillEntry(fuseops.InodeID(child.Ino), child.Entry, &op.Entry)
		}
	}

	return toErrno(apierr.New(apierr.KindNotFound, "no such child"))
}

func (f *fsImpl) fillEntry(ino fuseops.InodeID, e *inode.Entry, out *fuseops.ChildInodeEntry) error {
	out.Child = ino
	out.Attributes = f.attributesFor(e)
	return nil
}

// GetInodeAttributes returns the fixed attribute set for the inode in
// question.
func (f *fsImpl) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	e := f.inodes.Get(uint64(op.Inode))
	if e == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "inode not found"))
	}

	op.Attributes = f.attributesFor(e)
	return nil
}

// SetInodeAttributes always fails: the filesystem is read-only and presents
// fixed attributes (§4.E "setattr: reply with read-only-filesystem error").
func (f *fsImpl) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	if f.inodes.Get(uint64(op.Inode)) == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "inode not found"))
	}
	return toErrno(apierr.New(apierr.KindReadOnly, "setattr is not supported"))
}

// ForgetInode is a no-op: the inode table has no kernel lookup-count
// refcounting to decrement, since inodes only go away via discovery noticing
// a torrent disappeared, never via kernel forget pressure.
func (f *fsImpl) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}
