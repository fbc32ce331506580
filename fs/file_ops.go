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
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
	"github.com/torrentfuse/torrentfuse/worker"
)

// OpenFile validates the inode names a file and allocates a handle
// recording which (torrent, file index) it reads from.
func (f *fsImpl) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	e := f.inodes.Get(uint64(op.Inode))
	if e == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "inode not found"))
	}
	if e.Kind != inode.KindFile {
		return toErrno(apierr.New(apierr.KindTypeMismatch, "not a file"))
	}
	if op.Flags.IsWriteOnly() || op.Flags.IsReadWrite() {
		return toErrno(apierr.New(apierr.KindReadOnly, "filesystem is read-only"))
	}

	op.Handle = f.handles.Open(op.Inode, e.TorrentID, uint64(e.FileIndex), e.SizeBytes, e.PieceLength, e.FileOffset)
	op.KeepPageCache = true
	return nil
}

// ReadFile clamps the request to maxReadSize and the file's remaining size,
// acquires a concurrency permit, and submits the read to the worker, exactly
// the §4.E/§4.D handoff.
func (f *fsImpl) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fh, ok := f.handles.Get(op.Handle)
	if !ok {
		return toErrno(apierr.New(apierr.KindBadHandle, "unknown file handle"))
	}
	if fh.Ino != op.Inode {
		return toErrno(apierr.New(apierr.KindBadHandle, "handle does not match inode"))
	}

	offset := uint64(op.Offset)
	if offset >= fh.FileSize {
		op.BytesRead = 0
		return nil
	}

	size := uint64(op.Size)
	if remaining := fh.FileSize - offset; size > remaining {
		size = remaining
	}
	if size > maxReadSize {
		size = maxReadSize
	}

	if size > 0 {
		if err := f.piecesReady(ctx, fh, offset, size); err != nil {
			return toErrno(err)
		}
	}

	select {
	case f.readSem <- struct{}{}:
	case <-time.After(f.readTimeout):
		return toErrno(apierr.New(apierr.KindNotReady, "too many concurrent reads"))
	case <-ctx.Done():
		return toErrno(apierr.New(apierr.KindNotReady, "read canceled"))
	}
	defer func() { <-f.readSem }()

	req := worker.Request{
		Op: worker.OpRead,
		Read: worker.ReadArgs{
			TorrentID: fh.TorrentID,
			FileIndex: fh.FileIndex,
			Offset:    offset,
			Size:      size,
		},
	}

	start := f.clock.Now()
	res := f.wkr.Submit(req, f.readTimeout)
	if f.metrics != nil {
		f.metrics.ReadLatency.Observe(f.clock.Now().Sub(start).Seconds())
	}
	if res.Err != nil {
		return toErrno(res.Err)
	}

	if op.Dst != nil {
		op.BytesRead = copy(op.Dst, res.Bytes)
	} else {
		op.Data = [][]byte{res.Bytes}
		op.BytesRead = len(res.Bytes)
	}
	return nil
}

// piecesReady implements read() step 6 (§4.E): if the owning torrent
// reported a piece_length and is not already fully downloaded, resolve the
// pieces covering [offset, offset+size) within the file and fail the read
// with IoError ("EIO, promptly, rather than blocking") if any is missing,
// instead of letting the stream pool block on bytes that may never arrive.
func (f *fsImpl) piecesReady(ctx context.Context, fh fileHandleEntry, offset, size uint64) error {
	if fh.PieceLength == 0 {
		return nil
	}

	if stats, err := f.status.Get(ctx, fh.TorrentID); err == nil &&
		stats.TotalPieces > 0 && stats.DownloadedPieces >= stats.TotalPieces {
		return nil
	}

	start := (fh.FileOffset + offset) / fh.PieceLength
	end := (fh.FileOffset + offset + size - 1) / fh.PieceLength

	res := f.wkr.Submit(worker.Request{
		Op: worker.OpCheckPiecesAvailable,
		Read: worker.ReadArgs{
			TorrentID: fh.TorrentID,
			Offset:    start,
			Size:      end - start + 1,
		},
	}, f.readTimeout)
	if res.Err != nil {
		return res.Err
	}
	if !res.Available {
		return apierr.New(apierr.KindIoError, "required piece not yet downloaded")
	}
	return nil
}

// ReleaseFileHandle drops the handle and, if it was the last one open
// against that (torrent, file index), asks the stream pool to close the
// underlying connection rather than hold it open indefinitely.
func (f *fsImpl) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fh, ok := f.handles.Get(op.Handle)
	if !ok {
		return nil
	}
	f.handles.Release(op.Handle)

	if f.handles.OpenCountForFile(fh.TorrentID, fh.FileIndex) == 0 {
		f.wkr.Submit(worker.Request{
			Op: worker.OpCloseFileStream,
			Read: worker.ReadArgs{
				TorrentID: fh.TorrentID,
				FileIndex: fh.FileIndex,
			},
		}, f.readTimeout)
	}

	return nil
}

// ReadSymlink returns the stored target; only torrent directories and files
// are ever materialized as something other than a symlink today, but the
// inode model supports the kind for forward compatibility with backends
// that report symlinked files.
func (f *fsImpl) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	e := f.inodes.Get(uint64(op.Inode))
	if e == nil {
		return toErrno(apierr.New(apierr.KindNotFound, "inode not found"))
	}
	if e.Kind != inode.KindSymlink {
		return toErrno(apierr.New(apierr.KindInvalidArgument, "not a symlink"))
	}

	op.Target = e.TargetPath
	return nil
}
