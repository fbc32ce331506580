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

// Package backend wraps the torrent engine's HTTP API (§6): list torrents,
// fetch metadata, stat progress, read piece bitfields and stream file byte
// ranges. Every failure mode is reduced to apierr.Error at the methods'
// boundary (§4.A/§7).
package backend

// TorrentSummary is one element of GET /torrents.
type TorrentSummary struct {
	ID          uint64
	InfoHash    string
	DisplayName string
}

// FileInfo describes one file inside a torrent. Components is the file's
// path relative to the torrent's own root directory; it is passed through
// as the backend reports it. When every file's first segment is the
// torrent's display name, materializeTorrent strips that segment.
type FileInfo struct {
	Components []string
	Length     uint64
}

// TorrentInfo is the response to GET /torrents/{id}.
type TorrentInfo struct {
	ID          uint64
	DisplayName string
	PieceLength uint64
	Files       []FileInfo
}

// TorrentStats is the response to GET /torrents/{id}/stats/v1, reduced from
// the engine's richer snapshot to the fields the status xattr reports.
// Unknown/missing upstream fields are tolerated and left zero.
type TorrentStats struct {
	State             string
	ProgressBytes     uint64
	TotalBytes        uint64
	DownloadedPieces  uint64
	TotalPieces       uint64
}

// PieceBitfield is the response to GET /torrents/{id}/haves: LSB-first
// packed bits, one per piece.
type PieceBitfield struct {
	Bits      []byte
	NumPieces uint64
}

// HasPiece reports whether piece i is recorded present. Bit i%8 of byte
// i/8, LSB-first.
func (b PieceBitfield) HasPiece(i uint64) bool {
	if i >= b.NumPieces {
		return false
	}
	byteIdx := i / 8
	if byteIdx >= uint64(len(b.Bits)) {
		return false
	}
	return b.Bits[byteIdx]&(1<<(i%8)) != 0
}
