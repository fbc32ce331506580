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

// Package worker bridges the synchronous FUSE callback threads to the
// asynchronous backend/stream-pool machinery (component D). A bounded
// channel plus a one-shot result channel per request stand in for the
// oneshot-channel pattern: Go's goroutines and channels already give us the
// "spawn a task, answer on a oneshot" shape natively, so this package is the
// one place the design departs from a literal port in favor of the
// idiomatic Go mechanism.
package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/torrentfuse/torrentfuse/internal/apierr"
	"github.com/torrentfuse/torrentfuse/internal/logger"
)

// Op identifies which backend operation a Request performs.
type Op int

const (
	OpRead Op = iota
	OpListTorrents
	OpGetTorrent
	OpCheckPiecesAvailable
	OpCloseFileStream
)

// ReadArgs carries the parameters for OpRead and OpCheckPiecesAvailable;
// OpCloseFileStream takes its TorrentID and FileIndex from it as well.
type ReadArgs struct {
	TorrentID uint64
	FileIndex uint64
	Offset    uint64
	Size      uint64
}

// Request is one unit of work submitted to the worker.
type Request struct {
	ID   string
	Op   Op
	Read ReadArgs
	// TorrentID is used directly by OpGetTorrent.
	TorrentID uint64

	result chan Result
}

// Result is what a Request's oneshot resolves to. Torrents/Torrent are
// typed `any` so this package does not need to import backend directly;
// callers type-assert back to the concrete backend types their Handler
// produces.
type Result struct {
	Bytes     []byte
	Torrents  any
	Torrent   any
	Available bool
	Err       error
}

// Handler performs the actual async work for a Request. fs wires this to
// the backend client and stream pool.
type Handler interface {
	HandleRead(ctx context.Context, args ReadArgs) ([]byte, error)
	HandleListTorrents(ctx context.Context) (any, error)
	HandleGetTorrent(ctx context.Context, torrentID uint64) (any, error)
	HandleCheckPiecesAvailable(ctx context.Context, args ReadArgs) (bool, error)
	HandleCloseFileStream(ctx context.Context, torrentID, fileIndex uint64) error
}

// Worker is the bounded-channel dispatch loop of component D.
type Worker struct {
	handler Handler
	log     *logger.Logger

	requests chan Request
	done     chan struct{}
}

// New creates a Worker with the given channel capacity (ChannelFull is
// returned once it is full) and starts its dispatch loop.
func New(handler Handler, log *logger.Logger, channelCapacity int) *Worker {
	if channelCapacity <= 0 {
		channelCapacity = 128
	}
	w := &Worker{
		handler:  handler,
		log:      log,
		requests: make(chan Request, channelCapacity),
		done:     make(chan struct{}),
	}
	go w.dispatchLoop()
	return w
}

// dispatchLoop receives requests and spawns one goroutine per request so
// operations run concurrently, exactly mirroring "spawns a task" in §4.D.
func (w *Worker) dispatchLoop() {
	for {
		select {
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			go w.execute(req)
		case <-w.done:
			return
		}
	}
}

func (w *Worker) execute(req Request) {
	ctx := context.Background()
	var res Result
	switch req.Op {
	case OpRead:
		res.Bytes, res.Err = w.handler.HandleRead(ctx, req.Read)
	case OpListTorrents:
		res.Torrents, res.Err = w.handler.HandleListTorrents(ctx)
	case OpGetTorrent:
		res.Torrent, res.Err = w.handler.HandleGetTorrent(ctx, req.TorrentID)
	case OpCheckPiecesAvailable:
		res.Available, res.Err = w.handler.HandleCheckPiecesAvailable(ctx, req.Read)
	case OpCloseFileStream:
		res.Err = w.handler.HandleCloseFileStream(ctx, req.Read.TorrentID, req.Read.FileIndex)
	}

	// The submitting side may already have timed out and stopped
	// listening; the send must never block the dispatch loop forever.
	select {
	case req.result <- res:
	default:
	}
}

// Submit enqueues req with a try-send policy and blocks the caller (this is
// the FUSE callback thread) on the oneshot up to timeout.
//
//   - Channel full                 → ChannelFull (apierr.KindNotReady)
//   - Worker shut down              → WorkerDisconnected (apierr.KindNotReady)
//   - Oneshot times out              → TimedOut (apierr.KindNotReady); the
//     spawned task keeps running and its result is discarded
//   - Oneshot resolves               → the Result it carries
func (w *Worker) Submit(req Request, timeout time.Duration) Result {
	select {
	case <-w.done:
		return Result{Err: apierr.New(apierr.KindNotReady, "worker disconnected")}
	default:
	}

	req.ID = uuid.NewString()
	req.result = make(chan Result, 1)

	select {
	case w.requests <- req:
	default:
		return Result{Err: apierr.New(apierr.KindNotReady, "worker channel full")}
	}

	select {
	case res := <-req.result:
		return res
	case <-time.After(timeout):
		w.log.Warn("worker request timed out", "request_id", req.ID, "op", req.Op)
		return Result{Err: apierr.New(apierr.KindNotReady, "worker request timed out")}
	case <-w.done:
		return Result{Err: apierr.New(apierr.KindNotReady, "worker disconnected")}
	}
}

// Shutdown closes the done channel, which stops the dispatch loop and makes
// later Submits fail; any oneshot still pending resolves
// to WorkerDisconnected via the <-w.done case in Submit.
func (w *Worker) Shutdown() {
	close(w.done)
}
