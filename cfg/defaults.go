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

import "time"

// Defaults returns the configuration used during startup before flags, a
// config file or the environment have been parsed.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			ReadTimeout:       30 * time.Second,
			RetryAttempts:     3,
			RetryBaseDelay:    250 * time.Millisecond,
			RequestsPerSecond: 20,
		},
		FileSystem: FileSystemConfig{
			MaxConcurrentReads: 32,
			MaxInodes:          1 << 20,
		},
		Cache: CacheConfig{
			StatusTTL:       2 * time.Second,
			MaxCacheEntries: 4096,
			MaxOpenStreams:  50,
			MaxSeekForward:  10 << 20,
		},
		Logging: LoggingConfig{
			Severity: LogSeverityInfo,
			Format:   LogFormatText,
		},
	}
}
