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
	"encoding/json"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

// statusXattrName is the only extended attribute this filesystem exposes
// (§4.E/§6): a point-in-time snapshot of the owning torrent's progress.
const statusXattrName = "user.torrent.status"

// torrentStatusXattr is the JSON document returned for statusXattrName.
type torrentStatusXattr struct {
	TorrentID        uint64 `json:"torrent_id"`
	State            string `json:"state"`
	ProgressPct      float64 `json:"progress_pct"`
	ProgressBytes    uint64 `json:"progress_bytes"`
	TotalBytes       uint64 `json:"total_bytes"`
	DownloadedPieces uint64 `json:"downloaded_pieces"`
	TotalPieces      uint64 `json:"total_pieces"`
}

// torrentIDFor reports which torrent owns ino, if any: a file always
// belongs to one, a directory only if it is itself a torrent's materialized
// root (TorrentID != 0), not an intermediate path component.
func (f *fsImpl) torrentIDFor(ino uint64) (uint64, bool) {
	e := f.inodes.Get(ino)
	if e == nil {
		return 0, false
	}
	if e.Kind == inode.KindFile || (e.Kind == inode.KindDirectory && e.TorrentID != 0) {
		return e.TorrentID, true
	}
	return 0, false
}

func (f *fsImpl) statusXattrBytes(ctx context.Context, torrentID uint64) ([]byte, error) {
	stats, err := f.status.Get(ctx, torrentID)
	if err != nil {
		return nil, err
	}

	var pct float64
	if stats.TotalBytes > 0 {
		pct = float64(stats.ProgressBytes) / float64(stats.TotalBytes) * 100
	}

	return json.Marshal(torrentStatusXattr{
		TorrentID:        torrentID,
		State:            stats.State,
		ProgressPct:      pct,
		ProgressBytes:    stats.ProgressBytes,
		TotalBytes:       stats.TotalBytes,
		DownloadedPieces: stats.DownloadedPieces,
		TotalPieces:      stats.TotalPieces,
	})
}

// GetXattr serves user.torrent.status; any other name is unrecognized.
// A zero-length Dst is the kernel asking for the value's size without
// copying it (§6).
func (f *fsImpl) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	if op.Name != statusXattrName {
		return errNoSuchAttr
	}

	torrentID, ok := f.torrentIDFor(uint64(op.Inode))
	if !ok {
		return errNoSuchAttr
	}

	value, err := f.statusXattrBytes(ctx, torrentID)
	if err != nil {
		return toErrno(apierr.Wrap(apierr.KindIoError, "fetching torrent status", err))
	}

	if len(op.Dst) == 0 {
		op.BytesRead = len(value)
		return nil
	}
	if len(op.Dst) < len(value) {
		return syscall.ERANGE
	}

	op.BytesRead = copy(op.Dst, value)
	return nil
}

// ListXattr reports the single attribute name this filesystem defines,
// NUL-terminated as the kernel expects.
func (f *fsImpl) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	if _, ok := f.torrentIDFor(uint64(op.Inode)); !ok {
		op.BytesRead = 0
		return nil
	}

	listing := statusXattrName + "\x00"
	if len(op.Dst) == 0 {
		op.BytesRead = len(listing)
		return nil
	}
	if len(op.Dst) < len(listing) {
		return syscall.ERANGE
	}

	op.BytesRead = copy(op.Dst, listing)
	return nil
}
