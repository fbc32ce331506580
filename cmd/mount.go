// Copyright 2024 Google LLC
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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/torrentfuse/torrentfuse/backend"
	"github.com/torrentfuse/torrentfuse/cfg"
	"github.com/torrentfuse/torrentfuse/clock"
	"github.com/torrentfuse/torrentfuse/fs"
	"github.com/torrentfuse/torrentfuse/internal/logger"
	"github.com/torrentfuse/torrentfuse/internal/metrics"
)

// mount builds the filesystem server and the backend it talks to, mounts it
// at newConfig.FileSystem.MountPoint, and blocks until the mount is
// unmounted (by the kernel, the user running `fusermount -u`, or an
// interrupt signal).
func mount(ctx context.Context, newConfig *cfg.Config) error {
	log := logger.New(newConfig.Logging.Severity, newConfig.Logging.Format)

	client, err := backend.NewClient(backend.Config{
		APIURL:         newConfig.Backend.APIURL,
		AuthUser:       newConfig.Backend.AuthUser,
		AuthPass:       newConfig.Backend.AuthPass,
		ReadTimeout:    newConfig.Backend.ReadTimeout,
		RetryAttempts:  newConfig.Backend.RetryAttempts,
		RetryBaseDelay: newConfig.Backend.RetryBaseDelay,
		RequestsPerSec: newConfig.Backend.RequestsPerSecond,
	}, log)
	if err != nil {
		return fmt.Errorf("backend.NewClient: %w", err)
	}

	mets := metrics.New()

	server, err := fs.NewFileSystem(fs.Config{
		Backend:            client,
		Clock:              clock.RealClock{},
		Logger:             log,
		Metrics:            mets,
		MaxConcurrentReads: newConfig.FileSystem.MaxConcurrentReads,
		MaxInodes:          newConfig.FileSystem.MaxInodes,
		StatusTTL:          newConfig.Cache.StatusTTL,
		MaxStatusEntries:   newConfig.Cache.MaxCacheEntries,
		MaxOpenStreams:     newConfig.Cache.MaxOpenStreams,
		MaxSeekForward:     newConfig.Cache.MaxSeekForward,
	})
	if err != nil {
		return fmt.Errorf("fs.NewFileSystem: %w", err)
	}

	mountCfg := &fuse.MountConfig{
		FSName:                  "torrentfuse",
		Subtype:                 "torrentfuse",
		VolumeName:              "torrentfuse",
		ReadOnly:                true,
		EnableParallelDirOps:    true,
		DisableWritebackCaching: true,
		ErrorLogger:             logger.NewStdLogger(log, "fuse"),
	}

	log.Info("mounting torrentfuse", "mount_point", newConfig.FileSystem.MountPoint)
	mfs, err := fuse.Mount(newConfig.FileSystem.MountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("fuse.Mount: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, unmounting")
		if err := fuse.Unmount(newConfig.FileSystem.MountPoint); err != nil {
			log.Error("error unmounting on signal", "error", err)
		}
	}()

	if err := mfs.Join(ctx); err != nil {
		return fmt.Errorf("mfs.Join: %w", err)
	}

	server.Destroy()
	return nil
}
