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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentfuse/torrentfuse/clock"
)

func TestHandleTable_ReapExpired_LeavesFreshHandlesAlone(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	tbl := newHandleTable(clk)
	fh := tbl.Open(1, 1, 0, 100, 0, 0)

	clk.AdvanceTime(fileHandleTTL - time.Second)
	assert.Equal(t, 0, tbl.ReapExpired(clk.Now(), fileHandleTTL))

	_, ok := tbl.Get(fh)
	assert.True(t, ok)
}

func TestHandleTable_ReapExpired_RemovesIdleHandles(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	tbl := newHandleTable(clk)
	fh := tbl.Open(1, 1, 0, 100, 0, 0)

	clk.AdvanceTime(fileHandleTTL)
	require.Equal(t, 1, tbl.ReapExpired(clk.Now(), fileHandleTTL))

	_, ok := tbl.Get(fh)
	assert.False(t, ok)
}

func TestHandleTable_ReapExpired_DoesNotTouchHandlesOpenedAfterSweep(t *testing.T) {
	clk := clock.NewSimulatedClock(time.Unix(0, 0))
	tbl := newHandleTable(clk)
	old := tbl.Open(1, 1, 0, 100, 0, 0)

	clk.AdvanceTime(fileHandleTTL)
	fresh := tbl.Open(2, 1, 1, 100, 0, 0)

	require.Equal(t, 1, tbl.ReapExpired(clk.Now(), fileHandleTTL))

	_, ok := tbl.Get(old)
	assert.False(t, ok)
	_, ok = tbl.Get(fresh)
	assert.True(t, ok)
}
