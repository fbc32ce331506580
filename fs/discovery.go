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
	"path"
	"strings"
	"time"

	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/inode"
)

// discoveryInterval is how often the periodic tick runs, independent of the
// on-demand trigger from readdir(root).
const discoveryInterval = 15 * time.Second

// discoveryLoop runs on startup and periodically thereafter until
// stopBackground is closed. Overlapping ticks coalesce through
// discoveryGroup (the reentrancy guard called out in §4.E).
func (f *fsImpl) discoveryLoop() {
	f.runDiscovery()

	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.runDiscovery()
		case <-f.stopBackground:
			return
		}
	}
}

// runDiscovery triggers one discovery pass, coalescing concurrent callers
// (the periodic tick and an opportunistic readdir(root)) into one in-flight
// call.
func (f *fsImpl) runDiscovery() {
	_, _, _ = f.discoveryGroup.Do("discover", func() (interface{}, error) {
		f.discoverOnce(context.Background())
		return nil, nil
	})
}

func (f *fsImpl) discoverOnce(ctx context.Context) {
	fresh, err := f.backend.ListTorrents(ctx)
	if err != nil {
		f.log.Warn("discovery: list_torrents failed, will retry next tick", "error", err)
		return
	}

	freshIDs := make(map[uint64]struct{}, len(fresh))
	for _, t := range fresh {
		freshIDs[t.ID] = struct{}{}
	}

	f.knownMu.Lock()
	var newIDs, removedIDs []uint64
	for id := range freshIDs {
		if _, ok := f.known[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	for id := range f.known {
		if _, ok := freshIDs[id]; !ok {
			removedIDs = append(removedIDs, id)
		}
	}
	f.knownMu.Unlock()

	for _, id := range newIDs {
		info, err := f.backend.GetTorrent(ctx, id)
		if err != nil {
			f.log.Warn("discovery: get_torrent failed", "torrent_id", id, "error", err)
			continue
		}
		f.materializeTorrent(info)

		f.knownMu.Lock()
		f.known[id] = struct{}{}
		f.knownMu.Unlock()
	}

	for _, id := range removedIDs {
		f.removeTorrent(id)

		f.knownMu.Lock()
		delete(f.known, id)
		f.knownMu.Unlock()
	}
}

func (f *fsImpl) removeTorrent(torrentID uint64) {
	ino, ok := f.inodes.LookupTorrent(torrentID)
	if !ok {
		return
	}
	if err := f.inodes.RemoveSubtree(ino); err != nil {
		f.log.Warn("discovery: remove_subtree failed", "torrent_id", torrentID, "error", err)
	}
	f.status.Invalidate(torrentID)
}

// sanitizeName replaces path separators, NUL and control characters with
// "_" and neutralizes ".." components (§4.E materialize_torrent).
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == 0 || r < 0x20:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if sanitized == ".." || sanitized == "." {
		sanitized = "_"
	}
	if sanitized == "" {
		sanitized = "_"
	}
	return sanitized
}

// materializeTorrent allocates the inode tree for one torrent's files,
// following the single-file/multi-file branching and the components
// heuristic described in §4.E and resolved under "Open Questions" in
// DESIGN.md.
func (f *fsImpl) materializeTorrent(info backend.TorrentInfo) {
	sanitizedName := sanitizeName(info.DisplayName)

	stripLeadingName := filesAllShareLeadingComponent(info.Files, sanitizedName)

	if len(info.Files) == 1 {
		components := info.Files[0].Components
		if stripLeadingName && len(components) > 1 {
			components = components[1:]
		}
		name := sanitizedName
		if len(components) > 0 {
			name = sanitizeName(components[len(components)-1])
		}

		fileIno, err := f.inodes.Allocate(&inode.Entry{
			Kind:        inode.KindFile,
			Name:        name,
			ParentIno:   inode.RootIno,
			TorrentID:   info.ID,
			FileIndex:   0,
			SizeBytes:   info.Files[0].Length,
			PieceLength: info.PieceLength,
		}, true)
		if err != nil {
			f.log.Warn("materialize_torrent: allocating single-file entry failed", "torrent_id", info.ID, "error", err)
			return
		}
		f.inodes.AddChild(inode.RootIno, fileIno)
		return
	}

	dirIno, err := f.inodes.Allocate(&inode.Entry{
		Kind:      inode.KindDirectory,
		Name:      sanitizedName,
		ParentIno: inode.RootIno,
		TorrentID: info.ID,
	}, true)
	if err != nil {
		f.log.Warn("materialize_torrent: allocating torrent directory failed", "torrent_id", info.ID, "error", err)
		return
	}
	f.inodes.AddChild(inode.RootIno, dirIno)

	createdDirs := map[string]uint64{"": dirIno}

	// fileOffset tracks each file's byte offset within the torrent's
	// concatenated layout (files in their original, pre-strip order), so a
	// read against any one file can be mapped onto the pieces covering it.
	var fileOffset uint64

	for idx, file := range info.Files {
		components := file.Components
		if stripLeadingName && len(components) > 1 {
			components = components[1:]
		}
		if len(components) == 0 {
			fileOffset += file.Length
			continue
		}

		parent := dirIno
		parentPath := ""
		for _, dirName := range components[:len(components)-1] {
			dirName = sanitizeName(dirName)
			parentPath = path.Join(parentPath, dirName)
			if existing, ok := createdDirs[parentPath]; ok {
				parent = existing
				continue
			}

			newDirIno, err := f.inodes.Allocate(&inode.Entry{
				Kind:      inode.KindDirectory,
				Name:      dirName,
				ParentIno: parent,
			}, false)
			if err != nil {
				f.log.Warn("materialize_torrent: allocating intermediate directory failed", "torrent_id", info.ID, "error", err)
				return
			}
			f.inodes.AddChild(parent, newDirIno)
			createdDirs[parentPath] = newDirIno
			parent = newDirIno
		}

		fileName := sanitizeName(components[len(components)-1])
		fileIno, err := f.inodes.Allocate(&inode.Entry{
			Kind:        inode.KindFile,
			Name:        fileName,
			ParentIno:   parent,
			TorrentID:   info.ID,
			FileIndex:   idx,
			SizeBytes:   file.Length,
			PieceLength: info.PieceLength,
			FileOffset:  fileOffset,
		}, false)
		if err != nil {
			f.log.Warn("materialize_torrent: allocating file entry failed", "torrent_id", info.ID, "error", err)
			return
		}
		f.inodes.AddChild(parent, fileIno)
		fileOffset += file.Length
	}
}

// filesAllShareLeadingComponent implements the heuristic in §9/§4.E: if
// every file's first path component equals the torrent's sanitized display
// name, the backend is including the torrent name as part of components and
// it must be stripped to avoid doubled nesting.
func filesAllShareLeadingComponent(files []backend.FileInfo, sanitizedName string) bool {
	if len(files) == 0 {
		return false
	}
	for _, file := range files {
		if len(file.Components) == 0 || sanitizeName(file.Components[0]) != sanitizedName {
			return false
		}
	}
	return true
}
