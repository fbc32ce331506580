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

	"github.com/jacobsa/fuse/fuseops"

	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// Init starts the background discovery loop and the idle file-handle
// reaper (§3 Lifecycle, §4.E "init"). Both run in their own goroutines:
// the discovery loop makes its first pass as soon as it starts, and Init
// returns without waiting for that pass to finish.
func (f *fsImpl) Init(ctx context.Context, op *fuseops.InitOp) error {
	go f.discoveryLoop()
	go f.handleReaper()
	return nil
}

// Destroy runs the same idempotent shutdown FileSystem.Destroy triggers
// explicitly, in case the kernel connection itself delivers a destroy op.
func (f *fsImpl) Destroy() {
	f.destroy()
}

// StatFS reports conservative, mostly-fictional filesystem statistics: the
// backend has no notion of free space or inode limits to report accurately.
func (f *fsImpl) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.Blocks = 1 << 30
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.IoSize = maxReadSize
	return nil
}

var errReadOnly = toErrno(apierr.New(apierr.KindReadOnly, "filesystem is read-only"))

// The mutating callbacks below all reply with the read-only-filesystem
// error described in §4.E, rather than falling through to the embedded
// NotImplementedFileSystem's ENOSYS, since a real filesystem on a
// well-behaved OS reports EROFS for write attempts on a read-only mount.

func (f *fsImpl) MkDir(ctx context.Context, op *fuseops.MkDirOp) error { return errReadOnly }

func (f *fsImpl) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error { return errReadOnly }

func (f *fsImpl) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	return errReadOnly
}

func (f *fsImpl) RmDir(ctx context.Context, op *fuseops.RmDirOp) error { return errReadOnly }

func (f *fsImpl) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error { return errReadOnly }

func (f *fsImpl) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error { return errReadOnly }

// SyncFile and FlushFile are no-ops: nothing is ever dirty on a read-only
// filesystem, so there is nothing to persist.

func (f *fsImpl) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error { return nil }

func (f *fsImpl) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error { return nil }
