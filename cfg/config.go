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

package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LogSeverity mirrors the severities internal/logger accepts.
type LogSeverity string

const (
	LogSeverityTrace   LogSeverity = "TRACE"
	LogSeverityDebug   LogSeverity = "DEBUG"
	LogSeverityInfo    LogSeverity = "INFO"
	LogSeverityWarning LogSeverity = "WARNING"
	LogSeverityError   LogSeverity = "ERROR"
	LogSeverityOff     LogSeverity = "OFF"
)

// LogFormat selects the logger's output encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Config is the fully resolved, validated configuration for a mount.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	FileSystem FileSystemConfig `yaml:"file-system"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type BackendConfig struct {
	// APIURL is the base URL of the torrent engine's HTTP API (§6).
	APIURL string `yaml:"api-url"`

	AuthUser string `yaml:"auth-user"`
	AuthPass string `yaml:"auth-pass"`

	ReadTimeout time.Duration `yaml:"read-timeout"`

	RetryAttempts  int           `yaml:"retry-attempts"`
	RetryBaseDelay time.Duration `yaml:"retry-base-delay"`

	// RequestsPerSecond paces outbound backend calls (golang.org/x/time/rate).
	RequestsPerSecond float64 `yaml:"requests-per-second"`
}

type FileSystemConfig struct {
	MountPoint string `yaml:"mount-point"`

	MaxConcurrentReads int `yaml:"max-concurrent-reads"`

	MaxInodes uint64 `yaml:"max-inodes"`
}

type CacheConfig struct {
	// StatusTTL bounds how long a cached get_torrent_stats result is served
	// before the backend is consulted again (§9 status-xattr freshness).
	StatusTTL time.Duration `yaml:"status-ttl"`

	MaxCacheEntries int `yaml:"max-cache-entries"`

	MaxOpenStreams int `yaml:"max-open-streams"`

	// MaxSeekForward is the largest forward skip a stream pool entry will
	// absorb in place before tearing down and reopening (§4.C).
	MaxSeekForward uint64 `yaml:"max-seek-forward"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`
	Format   LogFormat   `yaml:"format"`
}

// BindFlags registers the pflag.FlagSet backing a Config and wires each flag
// into viper so viper.Unmarshal can merge flags with a config file.
// Environment variables are not read.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.StringP("api-url", "", "", "Base URL of the torrent engine's HTTP API.")
	flagSet.StringP("auth-user", "", "", "Basic auth username for the backend API.")
	flagSet.StringP("auth-pass", "", "", "Basic auth password for the backend API.")
	flagSet.DurationP("read-timeout", "", 30*time.Second, "Timeout for a single backend HTTP request.")
	flagSet.IntP("retry-attempts", "", 3, "Number of attempts for a retryable backend request.")
	flagSet.DurationP("retry-base-delay", "", 250*time.Millisecond, "Base delay multiplied by attempt number for backend retry backoff.")
	flagSet.Float64P("requests-per-second", "", 20, "Steady-state rate limit applied to outbound backend requests.")
	flagSet.StringP("mount-point", "", "", "Directory to mount the filesystem at.")
	flagSet.IntP("max-concurrent-reads", "", 32, "Maximum number of reads in flight at once.")
	flagSet.Uint64P("max-inodes", "", 1<<20, "Maximum number of live inodes before new torrents are rejected.")
	flagSet.DurationP("status-ttl", "", 2*time.Second, "How long a cached torrent status is served before refetching.")
	flagSet.IntP("max-cache-entries", "", 4096, "Maximum number of cached status entries.")
	flagSet.IntP("max-open-streams", "", 50, "Maximum number of persistent backend streams held open at once.")
	flagSet.Uint64P("max-seek-forward", "", 10<<20, "Largest forward seek a stream absorbs before reopening, in bytes.")
	flagSet.StringP("log-severity", "", string(LogSeverityInfo), "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	flagSet.StringP("log-format", "", string(LogFormatText), "Log output format: text or json.")

	// viper key -> flag name, since our yaml keys are dotted/nested but
	// flags stay flat.
	bindings := map[string]string{
		"backend.api-url":                  "api-url",
		"backend.auth-user":                "auth-user",
		"backend.auth-pass":                "auth-pass",
		"backend.read-timeout":             "read-timeout",
		"backend.retry-attempts":           "retry-attempts",
		"backend.retry-base-delay":         "retry-base-delay",
		"backend.requests-per-second":      "requests-per-second",
		"file-system.mount-point":          "mount-point",
		"file-system.max-concurrent-reads": "max-concurrent-reads",
		"file-system.max-inodes":           "max-inodes",
		"cache.status-ttl":                 "status-ttl",
		"cache.max-cache-entries":          "max-cache-entries",
		"cache.max-open-streams":           "max-open-streams",
		"cache.max-seek-forward":           "max-seek-forward",
		"logging.severity":                 "log-severity",
		"logging.format":                   "log-format",
	}
	for viperKey, flagName := range bindings {
		if err := viper.BindPFlag(viperKey, flagSet.Lookup(flagName)); err != nil {
			return err
		}
	}

	return nil
}
