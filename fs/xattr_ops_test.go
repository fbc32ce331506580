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
	"encoding/json"
	"syscall"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/inode"
)

func TestGetXattr_UnknownNameIsNoSuchAttr(t *testing.T) {
	f := testFS(t, &fakeHandler{}, nil)
	fileIno := addFile(t, f, inode.RootIno, "a", 1, 0, 1)

	var op fuseops.GetXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Name = "user.something.else"
	op.Dst = make([]byte, 64)
	assert.Equal(t, errNoSuchAttr, f.GetXattr(ctx(), &op))
}

func TestGetXattr_SizeQueryWithZeroLengthDst(t *testing.T) {
	fetcher := &fakeStatsFetcher{stats: map[uint64]backend.TorrentStats{
		1: {State: "downloading", ProgressBytes: 50, TotalBytes: 200, DownloadedPieces: 5, TotalPieces: 20},
	}}
	f := testFS(t, &fakeHandler{}, fetcher)
	fileIno := addFile(t, f, inode.RootIno, "a", 1, 0, 1)

	var op fuseops.GetXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Name = statusXattrName
	require.NoError(t, f.GetXattr(ctx(), &op))
	assert.Greater(t, op.BytesRead, 0)
}

func TestGetXattr_TooSmallDstIsERange(t *testing.T) {
	fetcher := &fakeStatsFetcher{stats: map[uint64]backend.TorrentStats{
		1: {State: "downloading", ProgressBytes: 50, TotalBytes: 200},
	}}
	f := testFS(t, &fakeHandler{}, fetcher)
	fileIno := addFile(t, f, inode.RootIno, "a", 1, 0, 1)

	var op fuseops.GetXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Name = statusXattrName
	op.Dst = make([]byte, 1)
	assert.Equal(t, syscall.ERANGE, f.GetXattr(ctx(), &op))
}

func TestGetXattr_ReturnsDecodableJSON(t *testing.T) {
	fetcher := &fakeStatsFetcher{stats: map[uint64]backend.TorrentStats{
		42: {State: "seeding", ProgressBytes: 100, TotalBytes: 100, DownloadedPieces: 10, TotalPieces: 10},
	}}
	f := testFS(t, &fakeHandler{}, fetcher)
	fileIno := addFile(t, f, inode.RootIno, "a", 42, 0, 1)

	var op fuseops.GetXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Name = statusXattrName
	op.Dst = make([]byte, 512)
	require.NoError(t, f.GetXattr(ctx(), &op))

	var decoded torrentStatusXattr
	require.NoError(t, json.Unmarshal(op.Dst[:op.BytesRead], &decoded))
	assert.Equal(t, uint64(42), decoded.TorrentID)
	assert.Equal(t, "seeding", decoded.State)
	assert.Equal(t, 100.0, decoded.ProgressPct)
}

func TestGetXattr_NonTorrentInodeIsNoSuchAttr(t *testing.T) {
	f := testFS(t, &fakeHandler{}, nil)
	dirIno := addDir(t, f, inode.RootIno, "plain", 0, false)

	var op fuseops.GetXattrOp
	op.Inode = fuseops.InodeID(dirIno)
	op.Name = statusXattrName
	op.Dst = make([]byte, 64)
	assert.Equal(t, errNoSuchAttr, f.GetXattr(ctx(), &op))
}

func TestListXattr_ReportsSingleName(t *testing.T) {
	f := testFS(t, &fakeHandler{}, nil)
	fileIno := addFile(t, f, inode.RootIno, "a", 1, 0, 1)

	var op fuseops.ListXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Dst = make([]byte, 64)
	require.NoError(t, f.ListXattr(ctx(), &op))
	assert.Equal(t, statusXattrName+"\x00", string(op.Dst[:op.BytesRead]))
}

func TestListXattr_TooSmallDstIsERange(t *testing.T) {
	f := testFS(t, &fakeHandler{}, nil)
	fileIno := addFile(t, f, inode.RootIno, "a", 1, 0, 1)

	var op fuseops.ListXattrOp
	op.Inode = fuseops.InodeID(fileIno)
	op.Dst = make([]byte, 1)
	assert.Equal(t, syscall.ERANGE, f.ListXattr(ctx(), &op))
}

func TestListXattr_NonTorrentInodeIsEmpty(t *testing.T) {
	f := testFS(t, &fakeHandler{}, nil)
	dirIno := addDir(t, f, inode.RootIno, "plain", 0, false)

	var op fuseops.ListXattrOp
	op.Inode = fuseops.InodeID(dirIno)
	op.Dst = make([]byte, 64)
	require.NoError(t, f.ListXattr(ctx(), &op))
	assert.Equal(t, 0, op.BytesRead)
}
