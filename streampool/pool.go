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

// Package streampool implements the persistent stream pool (component C):
// contiguous reads of a single torrent file reuse one open HTTP response
// body instead of issuing a fresh ranged request per read call.
package streampool

import (
	"context"
	"io"
	"sync"

	"github.com/torrentfuse/torrentfuse/clock"
	"github.com/torrentfuse/torrentfuse/common"
	"github.com/torrentfuse/torrentfuse/internal/apierr"
	"github.com/torrentfuse/torrentfuse/internal/metrics"
)

// Key identifies one file within one torrent.
type Key struct {
	TorrentID uint64
	FileIndex uint64
}

// opener abstracts backend.Client.OpenStream so the pool can be tested
// without an HTTP server.
type opener interface {
	OpenStream(ctx context.Context, torrentID, fileIndex, offset uint64) (io.ReadCloser, error)
}

// entry holds one open stream and the bookkeeping the read algorithm needs.
type entry struct {
	mu sync.Mutex

	body    io.ReadCloser
	offset  uint64
	valid   bool
	pending []byte // bytes read past what the last call consumed

	key Key
}

// Pool is the persistent stream pool. Safe for concurrent use.
type Pool struct {
	backend opener
	clock   clock.Clock
	metrics *metrics.Handle

	maxSeekForward uint64
	cap            int

	mu      sync.Mutex
	entries map[Key]*entry
	lru     common.Queue[Key]
}

// Config configures a Pool.
type Config struct {
	MaxOpenStreams int
	MaxSeekForward uint64 // bytes; 0 selects the 10 MiB default in New
}

// New builds a Pool backed by backend, using clk for any time-derived
// bookkeeping and reporting into m.
func New(backend opener, clk clock.Clock, m *metrics.Handle, cfg Config) *Pool {
	cap := cfg.MaxOpenStreams
	if cap <= 0 {
		cap = 50
	}
	maxSeek := cfg.MaxSeekForward
	if maxSeek == 0 {
		maxSeek = 10 << 20
	}
	return &Pool{
		backend:        backend,
		clock:          clk,
		metrics:        m,
		maxSeekForward: maxSeek,
		cap:            cap,
		entries:        make(map[Key]*entry),
		lru:            common.NewLinkedListQueue[Key](),
	}
}

// Read implements the algorithm in the stream pool's read contract: reuse a
// stream on contiguous forward reads within MaxSeekForward, otherwise tear
// down and reopen at the requested offset.
func (p *Pool) Read(ctx context.Context, key Key, offset, size uint64) ([]byte, error) {
	e := p.acquireEntry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	needsReopen := !e.valid || offset < e.offset || offset-e.offset > p.maxSeekForward
	if needsReopen {
		p.teardownLocked(e)
		if err := p.openLocked(ctx, e, key, offset); err != nil {
			return nil, err
		}
	} else if offset > e.offset {
		if err := p.skipLocked(e, offset-e.offset); err != nil {
			p.invalidateLocked(e)
			return nil, err
		}
	}

	out, err := p.consumeLocked(e, size)
	if err != nil {
		p.invalidateLocked(e)
		return nil, err
	}
	e.offset += uint64(len(out))
	return out, nil
}

// Close tears down the entry for key, if any, releasing its connection.
// Used by release() when no other handle references the file (§4.E).
func (p *Pool) Close(key Key) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()

	if ok {
		e.mu.Lock()
		p.teardownLocked(e)
		e.mu.Unlock()
		p.metrics.OpenStreams.Dec()
	}
}

// acquireEntry returns the existing entry for key or installs a fresh,
// invalid placeholder, evicting the oldest entry first if at capacity.
func (p *Pool) acquireEntry(key Key) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[key]; ok {
		return e
	}

	if len(p.entries) >= p.cap {
		p.evictOneLocked()
	}

	e := &entry{key: key}
	p.entries[key] = e
	p.lru.Push(key)
	p.metrics.OpenStreams.Inc()
	return e
}

// evictOneLocked drops the least-recently-pushed entry. Must be called with
// p.mu held. Keys are pushed only when their entry is created, so eviction
// follows creation order (FIFO); a Read does not move its key to the back.
func (p *Pool) evictOneLocked() {
	for p.lru.Len() > 0 {
		key := p.lru.Pop()
		e, ok := p.entries[key]
		if !ok {
			continue
		}
		delete(p.entries, key)
		e.mu.Lock()
		p.teardownLocked(e)
		e.mu.Unlock()
		p.metrics.StreamEvictions.Inc()
		p.metrics.OpenStreams.Dec()
		return
	}
}

func (p *Pool) teardownLocked(e *entry) {
	if e.body != nil {
		e.body.Close()
		e.body = nil
	}
	e.valid = false
	e.pending = nil
}

func (p *Pool) invalidateLocked(e *entry) {
	e.valid = false
}

func (p *Pool) openLocked(ctx context.Context, e *entry, key Key, offset uint64) error {
	body, err := p.backend.OpenStream(ctx, key.TorrentID, key.FileIndex, offset)
	if err != nil {
		return apierr.Wrap(apierr.KindNetworkError, "opening stream", err)
	}
	e.body = body
	e.offset = offset
	e.valid = true
	e.pending = nil
	return nil
}

// skipLocked discards n bytes from the stream, first from any buffered
// pending bytes, then directly from the body.
func (p *Pool) skipLocked(e *entry, n uint64) error {
	if uint64(len(e.pending)) >= n {
		e.pending = e.pending[n:]
		e.offset += n
		return nil
	}
	n -= uint64(len(e.pending))
	e.offset += uint64(len(e.pending))
	e.pending = nil

	if _, err := io.CopyN(io.Discard, e.body, int64(n)); err != nil {
		return apierr.Wrap(apierr.KindNetworkError, "skipping ahead in stream", err)
	}
	e.offset += n
	return nil
}

// consumeLocked collects up to size bytes from pending bytes and then the
// stream body, buffering any overshoot for the next call.
func (p *Pool) consumeLocked(e *entry, size uint64) ([]byte, error) {
	out := make([]byte, 0, size)

	if len(e.pending) > 0 {
		n := uint64(len(e.pending))
		if n > size {
			n = size
		}
		out = append(out, e.pending[:n]...)
		e.pending = e.pending[n:]
	}

	for uint64(len(out)) < size {
		chunk := make([]byte, size-uint64(len(out)))
		n, err := e.body.Read(chunk)
		if n > 0 {
			out = append(out, chunk[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apierr.Wrap(apierr.KindNetworkError, "reading stream body", err)
		}
	}

	return out, nil
}
