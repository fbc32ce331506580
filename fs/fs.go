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

// Package fs implements the filesystem core (component E): the
// fuseutil.FileSystem callback surface the kernel drives, wired to the
// inode table, the stream pool and the async worker.
package fs

import (
	"fmt"
	"sync"
	"time"

	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sync/singleflight"

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/clock"
	"github.com/torrentfuse/torrentfuse/inode"
	"github.com/torrentfuse/torrentfuse/internal/logger"
	"github.com/torrentfuse/torrentfuse/internal/metrics"
	"github.com/torrentfuse/torrentfuse/internal/statuscache"
	"github.com/torrentfuse/torrentfuse/streampool"
	"github.com/torrentfuse/torrentfuse/worker"
)

// maxReadSize is the clamp applied to every read() call (§4.E step 4).
const maxReadSize = 64 * 1024

// Config wires up a FileSystem. See cmd/mount.go for how this is built from
// the resolved CLI/file configuration.
type Config struct {
	Backend *backend.Client
	Clock   clock.Clock
	Logger  *logger.Logger
	Metrics *metrics.Handle

	MaxConcurrentReads int
	MaxInodes          uint64
	StatusTTL          time.Duration
	MaxStatusEntries   int
	MaxOpenStreams     int
	MaxSeekForward     uint64
}

// FileSystem is the fuse.Server this module mounts: it dispatches kernel
// callbacks (via the embedded FileSystemServer) to fsImpl, and additionally
// exposes Destroy() directly so cmd/mount.go can run an orderly shutdown
// after the kernel connection is torn down.
type FileSystem struct {
	*fuseutil.FileSystemServer
	impl *fsImpl
}

// NewFileSystem validates cfg and builds a FileSystem.
func NewFileSystem(cfg Config) (*FileSystem, error) {
	impl, err := newFsImpl(cfg)
	if err != nil {
		return nil, err
	}

	return &FileSystem{
		FileSystemServer: fuseutil.NewFileSystemServer(impl),
		impl:             impl,
	}, nil
}

// Destroy runs the shutdown sequence described in §4.E/§5: stop the
// discovery loop and the handle reaper, then signal the worker. Streams
// still open in the stream pool are not closed here. Safe to call more
// than once.
func (f *FileSystem) Destroy() {
	f.impl.destroy()
}

// fsImpl is the actual fuseutil.FileSystem implementation. It is kept
// separate from FileSystem so Destroy() can be exposed without it also
// being reachable as a kernel op by accident.
type fsImpl struct {
	// NotImplementedFileSystem answers ENOSYS for any op this package does
	// not override, the same safety net the teacher embeds so the type
	// keeps satisfying fuseutil.FileSystem as new op kinds are added.
	fuseutil.NotImplementedFileSystem

	inodes     *inode.Table
	handles    *handleTable
	dirHandles *dirHandleTable
	backend    *backend.Client
	streams    *streampool.Pool
	wkr        *worker.Worker
	status     *statuscache.Cache

	clock     clock.Clock
	log       *logger.Logger
	metrics   *metrics.Handle
	startedAt time.Time

	readSem     chan struct{}
	readTimeout time.Duration

	// Discovery state (§4.E "Discovery loop").
	discoveryGroup singleflight.Group
	knownMu        sync.Mutex
	known          map[uint64]struct{}
	stopBackground chan struct{}

	destroyOnce sync.Once
}

func newFsImpl(cfg Config) (*fsImpl, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("fs.Config.Backend must not be nil")
	}
	if cfg.Metrics != nil {
		cfg.Backend.WithMetrics(cfg.Metrics)
	}

	maxConcurrentReads := cfg.MaxConcurrentReads
	if maxConcurrentReads <= 0 {
		maxConcurrentReads = 10
	}
	readTimeout := 30 * time.Second

	streams := streampool.New(cfg.Backend, cfg.Clock, cfg.Metrics, streampool.Config{
		MaxOpenStreams: cfg.MaxOpenStreams,
		MaxSeekForward: cfg.MaxSeekForward,
	})

	f := &fsImpl{
		inodes:         inode.NewTable(cfg.MaxInodes),
		handles:        newHandleTable(cfg.Clock),
		dirHandles:     newDirHandleTable(),
		backend:        cfg.Backend,
		streams:        streams,
		status:         statuscache.New(cfg.Backend, cfg.Clock, cfg.StatusTTL, cfg.MaxStatusEntries),
		clock:          cfg.Clock,
		log:            cfg.Logger,
		metrics:        cfg.Metrics,
		startedAt:      cfg.Clock.Now(),
		readSem:        make(chan struct{}, maxConcurrentReads),
		readTimeout:    readTimeout,
		known:          make(map[uint64]struct{}),
		stopBackground: make(chan struct{}),
	}
	f.wkr = worker.New(&fsWorkerHandler{backend: cfg.Backend, streams: streams}, cfg.Logger, 256)

	return f, nil
}

func (f *fsImpl) destroy() {
	f.destroyOnce.Do(func() {
		close(f.stopBackground)
		f.wkr.Shutdown()
	})
}
