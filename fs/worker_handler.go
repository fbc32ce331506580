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

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/streampool"
	"github.com/torrentfuse/torrentfuse/worker"
)

// fsWorkerHandler implements worker.Handler, translating each operation
// variant (§4.D) into a backend or stream-pool call. It is the seam between
// the async worker and the rest of the system.
type fsWorkerHandler struct {
	backend *backend.Client
	streams *streampool.Pool
}

func (h *fsWorkerHandler) HandleRead(ctx context.Context, args worker.ReadArgs) ([]byte, error) {
	key := streampool.Key{TorrentID: args.TorrentID, FileIndex: args.FileIndex}
	return h.streams.Read(ctx, key, args.Offset, args.Size)
}

func (h *fsWorkerHandler) HandleListTorrents(ctx context.Context) (any, error) {
	return h.backend.ListTorrents(ctx)
}

func (h *fsWorkerHandler) HandleGetTorrent(ctx context.Context, torrentID uint64) (any, error) {
	return h.backend.GetTorrent(ctx, torrentID)
}

// HandleCheckPiecesAvailable reports whether every piece in the half-open
// range [args.Offset, args.Offset+args.Size) is present. Callers resolve
// byte ranges to piece indices using the torrent's piece_length before
// submitting (fsImpl.piecesReady); args.Size of 0 is treated as 1.
func (h *fsWorkerHandler) HandleCheckPiecesAvailable(ctx context.Context, args worker.ReadArgs) (bool, error) {
	bitfield, err := h.backend.GetPieceBitfield(ctx, args.TorrentID)
	if err != nil {
		return false, err
	}

	count := args.Size
	if count == 0 {
		count = 1
	}
	for i := uint64(0); i < count; i++ {
		if !bitfield.HasPiece(args.Offset + i) {
			return false, nil
		}
	}
	return true, nil
}

func (h *fsWorkerHandler) HandleCloseFileStream(ctx context.Context, torrentID, fileIndex uint64) error {
	h.streams.Close(streampool.Key{TorrentID: torrentID, FileIndex: fileIndex})
	return nil
}
