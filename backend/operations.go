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

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/torrentfuse/torrentfuse/internal/apierr"
)

type torrentsResponse struct {
	Torrents []struct {
		ID            uint64 `json:"id"`
		InfoHash      string `json:"info_hash"`
		Name          string `json:"name"`
		OutputFolder  string `json:"output_folder"`
	} `json:"torrents"`
}

// ListTorrents fetches GET /torrents.
func (c *Client) ListTorrents(ctx context.Context) ([]TorrentSummary, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/torrents", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded torrentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apierr.Wrap(apierr.KindIoError, "decoding /torrents response", err)
	}

	out := make([]TorrentSummary, 0, len(decoded.Torrents))
	for _, t := range decoded.Torrents {
		out = append(out, TorrentSummary{ID: t.ID, InfoHash: t.InfoHash, DisplayName: t.Name})
	}
	return out, nil
}

type torrentInfoResponse struct {
	ID          uint64 `json:"id"`
	InfoHash    string `json:"info_hash"`
	Name        string `json:"name"`
	Files       []struct {
		Name       string   `json:"name"`
		Components []string `json:"components"`
		Length     uint64   `json:"length"`
	} `json:"files"`
	PieceLength uint64 `json:"piece_length"`
}

// GetTorrent fetches GET /torrents/{id}.
func (c *Client) GetTorrent(ctx context.Context, torrentID uint64) (TorrentInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/torrents/%d", torrentID), nil)
	if err != nil {
		return TorrentInfo{}, err
	}
	defer resp.Body.Close()

	var decoded torrentInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return TorrentInfo{}, apierr.Wrap(apierr.KindIoError, "decoding torrent info response", err)
	}

	files := make([]FileInfo, 0, len(decoded.Files))
	for _, f := range decoded.Files {
		components := f.Components
		if len(components) == 0 {
			components = []string{f.Name}
		}
		files = append(files, FileInfo{Components: components, Length: f.Length})
	}

	return TorrentInfo{
		ID:          decoded.ID,
		DisplayName: decoded.Name,
		PieceLength: decoded.PieceLength,
		Files:       files,
	}, nil
}

type statsResponse struct {
	Snapshot struct {
		DownloadedAndCheckedBytes uint64 `json:"downloaded_and_checked_bytes"`
		TotalBytes                uint64 `json:"total_bytes"`
		DownloadedPieces          uint64 `json:"downloaded_pieces"`
		TotalPieces               uint64 `json:"total_pieces"`
		State                     string `json:"state"`
	} `json:"snapshot"`
}

// GetTorrentStats fetches GET /torrents/{id}/stats/v1. Unknown fields in the
// upstream payload are tolerated (§6) by decoding into a struct that only
// names the fields the status xattr reports.
func (c *Client) GetTorrentStats(ctx context.Context, torrentID uint64) (TorrentStats, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/torrents/%d/stats/v1", torrentID), nil)
	if err != nil {
		return TorrentStats{}, err
	}
	defer resp.Body.Close()

	var decoded statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return TorrentStats{}, apierr.Wrap(apierr.KindIoError, "decoding stats response", err)
	}

	return TorrentStats{
		State:            decoded.Snapshot.State,
		ProgressBytes:    decoded.Snapshot.DownloadedAndCheckedBytes,
		TotalBytes:       decoded.Snapshot.TotalBytes,
		DownloadedPieces: decoded.Snapshot.DownloadedPieces,
		TotalPieces:      decoded.Snapshot.TotalPieces,
	}, nil
}

// GetPieceBitfield fetches GET /torrents/{id}/haves.
func (c *Client) GetPieceBitfield(ctx context.Context, torrentID uint64) (PieceBitfield, error) {
	headers := http.Header{"Accept": []string{"application/octet-stream"}}
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/torrents/%d/haves", torrentID), headers)
	if err != nil {
		return PieceBitfield{}, err
	}
	defer resp.Body.Close()

	numPieces, err := strconv.ParseUint(resp.Header.Get("x-bitfield-len"), 10, 64)
	if err != nil {
		return PieceBitfield{}, apierr.Wrap(apierr.KindIoError, "missing or invalid x-bitfield-len header", err)
	}

	bits, err := io.ReadAll(resp.Body)
	if err != nil {
		return PieceBitfield{}, apierr.Wrap(apierr.KindIoError, "reading bitfield body", err)
	}

	return PieceBitfield{Bits: bits, NumPieces: numPieces}, nil
}

// OpenStream issues GET /torrents/{id}/stream/{file_idx} with a Range header
// starting at offset and returns the response body positioned at offset.
// When the backend ignores Range and answers 200 with the full body (§4.A),
// the returned reader is pre-advanced past the skipped prefix without
// buffering it: the caller never sees anything before offset.
func (c *Client) OpenStream(ctx context.Context, torrentID uint64, fileIndex uint64, offset uint64) (io.ReadCloser, error) {
	headers := http.Header{"Range": []string{fmt.Sprintf("bytes=%d-", offset)}}
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/torrents/%d/stream/%d", torrentID, fileIndex), headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK && offset > 0 {
		if _, err := io.CopyN(io.Discard, resp.Body, int64(offset)); err != nil {
			resp.Body.Close()
			return nil, apierr.Wrap(apierr.KindIoError, "skipping prefix of unranged stream response", err)
		}
	}

	return resp.Body, nil
}

// ReadRange performs a single bounded read of size bytes at offset, for
// callers that want one-shot fetches without stream-pool reuse. The stream
// pool itself does not call it: at capacity it evicts an entry instead.
func (c *Client) ReadRange(ctx context.Context, torrentID uint64, fileIndex uint64, offset, size uint64) ([]byte, error) {
	body, err := c.OpenStream(ctx, torrentID, fileIndex, offset)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	buf := make([]byte, size)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apierr.Wrap(apierr.KindNetworkError, "reading range", err)
	}
	return buf[:n], nil
}
