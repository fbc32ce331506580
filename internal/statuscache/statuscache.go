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

// Package statuscache answers the status-xattr freshness open question
// (§9): rather than a background poller keeping every torrent's stats warm,
// GetXattr fetches on demand and caches the result for a short TTL, so a
// burst of `stat`/`getxattr` calls against one file costs one backend round
// trip instead of one per call.
package statuscache

import (
	"context"
	"sync"
	"time"

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/clock"
)

type statsFetcher interface {
	GetTorrentStats(ctx context.Context, torrentID uint64) (backend.TorrentStats, error)
}

type cacheEntry struct {
	stats     backend.TorrentStats
	fetchedAt time.Time
}

// Cache is a TTL-bounded, on-demand cache from torrent id to its last-known
// stats snapshot.
type Cache struct {
	fetcher    statsFetcher
	clock      clock.Clock
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[uint64]cacheEntry
}

// New builds a Cache. A ttl of 0 means always refetch. A maxEntries of 0
// means unbounded.
func New(fetcher statsFetcher, clk clock.Clock, ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		fetcher:    fetcher,
		clock:      clk,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[uint64]cacheEntry),
	}
}

// Get returns torrentID's stats, fetching from the backend only if there is
// no entry or the cached one is older than the configured TTL.
func (c *Cache) Get(ctx context.Context, torrentID uint64) (backend.TorrentStats, error) {
	now := c.clock.Now()

	c.mu.Lock()
	entry, ok := c.entries[torrentID]
	fresh := ok && now.Sub(entry.fetchedAt) < c.ttl
	c.mu.Unlock()

	if fresh {
		return entry.stats, nil
	}

	stats, err := c.fetcher.GetTorrentStats(ctx, torrentID)
	if err != nil {
		// Serve the stale value rather than fail outright, if we have one:
		// a transient backend hiccup shouldn't make `stat` error out.
		if ok {
			return entry.stats, nil
		}
		return backend.TorrentStats{}, err
	}

	c.mu.Lock()
	c.entries[torrentID] = cacheEntry{stats: stats, fetchedAt: now}
	c.evictIfOverCapLocked()
	c.mu.Unlock()

	return stats, nil
}

// evictIfOverCapLocked drops the stalest entries until the cache is back at
// or under maxEntries (§4.E "max-cache-entries"). Caller holds c.mu.
func (c *Cache) evictIfOverCapLocked() {
	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return
	}

	for len(c.entries) > c.maxEntries {
		var oldestID uint64
		var oldestAt time.Time
		first := true
		for id, e := range c.entries {
			if first || e.fetchedAt.Before(oldestAt) {
				oldestID, oldestAt, first = id, e.fetchedAt, false
			}
		}
		delete(c.entries, oldestID)
	}
}

// Invalidate drops any cached entry for torrentID, used when a torrent is
// removed by discovery.
func (c *Cache) Invalidate(torrentID uint64) {
	c.mu.Lock()
	delete(c.entries, torrentID)
	c.mu.Unlock()
}
