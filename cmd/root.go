// Copyright 2024 Google Inc. All Rights Reserved.
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
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/torrentfuse/torrentfuse/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error

	// MountConfig is populated by viper during cobra.OnInitialize, before
	// rootCmd.RunE ever runs.
	MountConfig = cfg.Defaults()
)

var rootCmd = &cobra.Command{
	Use:   "torrentfuse [flags] mount_point",
	Short: "Mount a torrent engine's downloads as a read-only local filesystem",
	Long: `torrentfuse is a FUSE adapter that exposes a running torrent engine's
in-progress and completed downloads as a local read-only filesystem, reading
file bytes on demand over the engine's HTTP API.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}

		mountPoint, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("canonicalizing mount point: %w", err)
		}
		MountConfig.FileSystem.MountPoint = mountPoint

		if err := cfg.ValidateConfig(&MountConfig); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		return mount(cmd.Context(), &MountConfig)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("error reading config file: %w", err)
			return
		}
	}

	decodeHook := viper.DecodeHook(cfg.DecodeHook())
	useYAMLTags := func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }
	if err := viper.Unmarshal(&MountConfig, decodeHook, useYAMLTags); err != nil {
		configFileErr = fmt.Errorf("error unmarshalling config: %w", err)
	}
}
