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
	"testing"
	"time"

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/cfg"
	"github.com/torrentfuse/torrentfuse/clock"
	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/logger"
	"github.com/torrentfuse/torrentfuse/internal/statuscache"
	"github.com/torrentfuse/torrentfuse/worker"
)

// fakeHandler is a worker.Handler whose responses are set by the test; the
// shape mirrors worker.fakeHandler, since fsImpl.ReadFile/ReleaseFileHandle
// exercise the same Submit/Request/Result contract that package tests.
type fakeHandler struct {
	mu sync.Mutex

	readBytes []byte
	readErr   error

	piecesAvailable bool
	piecesErr       error

	closedStreams []streamKey
}

type streamKey struct {
	TorrentID uint64
	FileIndex uint64
}

func (h *fakeHandler) HandleRead(ctx context.Context, args worker.ReadArgs) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readBytes, h.readErr
}

func (h *fakeHandler) HandleListTorrents(ctx context.Context) (any, error) { return nil, nil }

func (h *fakeHandler) HandleGetTorrent(ctx context.Context, torrentID uint64) (any, error) {
	return nil, nil
}

func (h *fakeHandler) HandleCheckPiecesAvailable(ctx context.Context, args worker.ReadArgs) (bool, error) {
	return h.piecesAvailable, h.piecesErr
}

func (h *fakeHandler) HandleCloseFileStream(ctx context.Context, torrentID, fileIndex uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closedStreams = append(h.closedStreams, streamKey{torrentID, fileIndex})
	return nil
}

// fakeStatsFetcher backs statuscache.Cache in tests without a real backend
// client; it satisfies statuscache's unexported statsFetcher interface by
// structural typing.
type fakeStatsFetcher struct {
	stats map[uint64]backend.TorrentStats
	err   error
}

func (f *fakeStatsFetcher) GetTorrentStats(ctx context.Context, torrentID uint64) (backend.TorrentStats, error) {
	if f.err != nil {
		return backend.TorrentStats{}, f.err
	}
	return f.stats[torrentID], nil
}

func testLogger() *logger.Logger {
	return logger.New(cfg.LogSeverityOff, cfg.LogFormatText)
}

// testFS builds an fsImpl directly from its fields, bypassing newFsImpl (and
// so the real backend.Client/streampool.Pool it wires up), the same way
// worker_test.go drives Worker against a fakeHandler instead of the real
// fsWorkerHandler.
func testFS(t *testing.T, h worker.Handler, fetcher *fakeStatsFetcher) *fsImpl {
	t.Helper()

	if fetcher == nil {
		fetcher = &fakeStatsFetcher{}
	}
	clk := clock.RealClock{}
	f := &fsImpl{
		inodes:         inode.NewTable(0),
		handles:        newHandleTable(clk),
		dirHandles:     newDirHandleTable(),
		status:         statuscache.New(fetcher, clk, time.Minute, 0),
		clock:          clk,
		log:            testLogger(),
		startedAt:      clk.Now(),
		readSem:        make(chan struct{}, 10),
		readTimeout:    time.Second,
		known:          make(map[uint64]struct{}),
		stopBackground: make(chan struct{}),
	}
	f.wkr = worker.New(h, testLogger(), 16)
	t.Cleanup(f.wkr.Shutdown)
	return f
}

// addFile allocates a file inode as a child of parentIno and links it in.
func addFile(t *testing.T, f *fsImpl, parentIno uint64, name string, torrentID, fileIndex, size uint64) uint64 {
	t.Helper()
	ino, err := f.inodes.Allocate(&inode.Entry{
		Kind:      inode.KindFile,
		Name:      name,
		ParentIno: parentIno,
		TorrentID: torrentID,
		FileIndex: int(fileIndex),
		SizeBytes: size,
	}, false)
	if err != nil {
		t.Fatalf("allocate file: %v", err)
	}
	f.inodes.AddChild(parentIno, ino)
	return ino
}

// addFileWithPieces is addFile plus the piece-gating metadata materializeTorrent
// would have set, for tests exercising ReadFile's piece-availability check.
func addFileWithPieces(t *testing.T, f *fsImpl, parentIno uint64, name string, torrentID, fileIndex, size, pieceLength, fileOffset uint64) uint64 {
	t.Helper()
	ino, err := f.inodes.Allocate(&inode.Entry{
		Kind:        inode.KindFile,
		Name:        name,
		ParentIno:   parentIno,
		TorrentID:   torrentID,
		FileIndex:   int(fileIndex),
		SizeBytes:   size,
		PieceLength: pieceLength,
		FileOffset:  fileOffset,
	}, false)
	if err != nil {
		t.Fatalf("allocate file: %v", err)
	}
	f.inodes.AddChild(parentIno, ino)
	return ino
}

// addDir allocates a directory inode as a child of parentIno and links it
// in. trackAsTorrentRoot mirrors the "materialized torrent root" case for a
// multi-file torrent.
func addDir(t *testing.T, f *fsImpl, parentIno uint64, name string, torrentID uint64, trackAsTorrentRoot bool) uint64 {
	t.Helper()
	ino, err := f.inodes.Allocate(&inode.Entry{
		Kind:      inode.KindDirectory,
		Name:      name,
		ParentIno: parentIno,
		TorrentID: torrentID,
	}, trackAsTorrentRoot)
	if err != nil {
		t.Fatalf("allocate dir: %v", err)
	}
	f.inodes.AddChild(parentIno, ino)
	return ino
}

func addSymlink(t *testing.T, f *fsImpl, parentIno uint64, name, target string) uint64 {
	t.Helper()
	ino, err := f.inodes.Allocate(&inode.Entry{
		Kind:       inode.KindSymlink,
		Name:       name,
		ParentIno:  parentIno,
		TargetPath: target,
	}, false)
	if err != nil {
		t.Fatalf("allocate symlink: %v", err)
	}
	f.inodes.AddChild(parentIno, ino)
	return ino
}

func ctx() context.Context { return context.Background() }
