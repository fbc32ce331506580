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
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/torrentfuse/torrentfuse/clock"
)

// fileHandleTTL bounds how long a handle may sit idle before handleReaper
// reclaims it (§3 Lifecycle): a crashed client, or a FORGET delivered
// without a matching RELEASE, must not leak a handle for the life of the
// process.
const fileHandleTTL = time.Hour

// handleReapInterval is how often handleReaper sweeps for expired handles.
const handleReapInterval = time.Minute

// fileHandleEntry records what open() resolved, so read() need not re-walk
// the inode table on every call.
type fileHandleEntry struct {
	Ino         fuseops.InodeID
	TorrentID   uint64
	FileIndex   uint64
	FileSize    uint64
	PieceLength uint64
	FileOffset  uint64
	OpenedAt    time.Time
}

// handleTable is the file-handle table: a counter distinct from inode
// numbers (§4.E), entries inserted on open and removed on release or by
// handleReaper on an idle TTL.
type handleTable struct {
	clock clock.Clock

	next atomic.Uint64

	mu      sync.Mutex
	entries map[fuseops.HandleID]fileHandleEntry
}

func newHandleTable(clk clock.Clock) *handleTable {
	return &handleTable{
		clock:   clk,
		entries: make(map[fuseops.HandleID]fileHandleEntry),
	}
}

func (t *handleTable) Open(ino fuseops.InodeID, torrentID, fileIndex, fileSize, pieceLength, fileOffset uint64) fuseops.HandleID {
	fh := fuseops.HandleID(t.next.Add(1))

	t.mu.Lock()
	t.entries[fh] = fileHandleEntry{
		Ino:         ino,
		TorrentID:   torrentID,
		FileIndex:   fileIndex,
		FileSize:    fileSize,
		PieceLength: pieceLength,
		FileOffset:  fileOffset,
		OpenedAt:    t.clock.Now(),
	}
	t.mu.Unlock()

	return fh
}

func (t *handleTable) Get(fh fuseops.HandleID) (fileHandleEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fh]
	return e, ok
}

func (t *handleTable) Release(fh fuseops.HandleID) {
	t.mu.Lock()
	delete(t.entries, fh)
	t.mu.Unlock()
}

// OpenCountForFile reports how many live handles reference (torrentID,
// fileIndex), used by release() to decide whether it's safe to ask the
// stream pool to close the underlying connection.
func (t *handleTable) OpenCountForFile(torrentID, fileIndex uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.TorrentID == torrentID && e.FileIndex == fileIndex {
			n++
		}
	}
	return n
}

// ReapExpired drops every handle whose OpenedAt is older than ttl as of now,
// returning how many were removed.
func (t *handleTable) ReapExpired(now time.Time, ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reaped int
	for fh, e := range t.entries {
		if now.Sub(e.OpenedAt) >= ttl {
			delete(t.entries, fh)
			reaped++
		}
	}
	return reaped
}

// handleReaper periodically reclaims file handles that have sat open past
// fileHandleTTL without a matching release() (§3 Lifecycle): a crashed
// client or a FORGET delivered without RELEASE must not leak a handle for
// the life of the process.
func (f *fsImpl) handleReaper() {
	ticker := time.NewTicker(handleReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := f.handles.ReapExpired(f.clock.Now(), fileHandleTTL); n > 0 {
				f.log.Warn("handle_reaper: reclaimed idle file handles", "count", n)
			}
			if f.metrics != nil {
				f.metrics.LiveInodes.Set(float64(f.inodes.Len()))
			}
		case <-f.stopBackground:
			return
		}
	}
}
