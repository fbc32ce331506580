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

package streampool

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torrentfuse/torrentfuse/clock"
	"github.com/torrentfuse/torrentfuse/internal/metrics"
)

// fakeOpener serves a fixed byte slice per (torrentID, fileIndex) and counts
// how many times a stream was opened, to verify reuse vs. teardown.
type fakeOpener struct {
	data      []byte
	openCount atomic.Int32
}

func (f *fakeOpener) OpenStream(_ context.Context, _ uint64, _ uint64, offset uint64) (io.ReadCloser, error) {
	f.openCount.Add(1)
	if offset >= uint64(len(f.data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(f.data[offset:])), nil
}

func newTestPool(t *testing.T, data []byte, cfg Config) (*Pool, *fakeOpener) {
	t.Helper()
	f := &fakeOpener{data: data}
	p := New(f, clock.RealClock{}, metrics.New(), cfg)
	return p, f
}

func TestRead_SequentialReadsReuseOneStream(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)
	p, f := newTestPool(t, data, Config{})
	key := Key{TorrentID: 1, FileIndex: 0}

	got, err := p.Read(context.Background(), key, 0, 40)
	require.NoError(t, err)
	assert.Equal(t, data[:40], got)

	got, err = p.Read(context.Background(), key, 40, 40)
	require.NoError(t, err)
	assert.Equal(t, data[40:80], got)

	assert.EqualValues(t, 1, f.openCount.Load(), "contiguous forward reads must reuse the open stream")
}

func TestRead_BackwardSeekReopensStream(t *testing.T) {
	data := bytes.Repeat([]byte("y"), 100)
	p, f := newTestPool(t, data, Config{})
	key := Key{TorrentID: 1, FileIndex: 0}

	_, err := p.Read(context.Background(), key, 50, 10)
	require.NoError(t, err)
	_, err = p.Read(context.Background(), key, 0, 10)
	require.NoError(t, err)

	assert.EqualValues(t, 2, f.openCount.Load(), "a backward seek must discard and reopen")
}

func TestRead_SeekBeyondMaxSeekForwardReopens(t *testing.T) {
	data := bytes.Repeat([]byte("z"), 100)
	p, f := newTestPool(t, data, Config{MaxSeekForward: 5})
	key := Key{TorrentID: 1, FileIndex: 0}

	_, err := p.Read(context.Background(), key, 0, 1)
	require.NoError(t, err)
	_, err = p.Read(context.Background(), key, 50, 1)
	require.NoError(t, err)

	assert.EqualValues(t, 2, f.openCount.Load())
}

func TestRead_SeekWithinMaxSeekForwardSkipsAhead(t *testing.T) {
	data := []byte("0123456789")
	p, f := newTestPool(t, data, Config{MaxSeekForward: 100})
	key := Key{TorrentID: 1, FileIndex: 0}

	_, err := p.Read(context.Background(), key, 0, 2)
	require.NoError(t, err)

	got, err := p.Read(context.Background(), key, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("56"), got)
	assert.EqualValues(t, 1, f.openCount.Load())
}

func TestRead_DifferentFilesDoNotShareAnEntry(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 10)
	p, _ := newTestPool(t, data, Config{})

	_, err := p.Read(context.Background(), Key{TorrentID: 1, FileIndex: 0}, 0, 1)
	require.NoError(t, err)
	_, err = p.Read(context.Background(), Key{TorrentID: 1, FileIndex: 1}, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, func() int { p.mu.Lock(); defer p.mu.Unlock(); return len(p.entries) }())
}

func TestEviction_DropsLeastRecentlyUsedAtCapacity(t *testing.T) {
	data := bytes.Repeat([]byte("b"), 10)
	p, _ := newTestPool(t, data, Config{MaxOpenStreams: 1})

	k1 := Key{TorrentID: 1, FileIndex: 0}
	k2 := Key{TorrentID: 2, FileIndex: 0}

	_, err := p.Read(context.Background(), k1, 0, 1)
	require.NoError(t, err)
	_, err = p.Read(context.Background(), k2, 0, 1)
	require.NoError(t, err)

	p.mu.Lock()
	_, k1Present := p.entries[k1]
	_, k2Present := p.entries[k2]
	p.mu.Unlock()

	assert.False(t, k1Present, "entry over capacity must be evicted")
	assert.True(t, k2Present)
}

func TestClose_TearsDownEntry(t *testing.T) {
	data := bytes.Repeat([]byte("c"), 10)
	p, _ := newTestPool(t, data, Config{})
	key := Key{TorrentID: 1, FileIndex: 0}

	_, err := p.Read(context.Background(), key, 0, 1)
	require.NoError(t, err)

	p.Close(key)

	p.mu.Lock()
	_, present := p.entries[key]
	p.mu.Unlock()
	assert.False(t, present)
}
