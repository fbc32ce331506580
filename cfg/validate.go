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
	"fmt"
	"net/url"
)

func isValidURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("api-url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("error parsing api-url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api-url must be http or https, got %q", u.Scheme)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidURL(config.Backend.APIURL); err != nil {
		return fmt.Errorf("error parsing backend config: %w", err)
	}

	if config.FileSystem.MountPoint == "" {
		return fmt.Errorf("mount-point must not be empty")
	}

	if config.Backend.ReadTimeout <= 0 {
		return fmt.Errorf("read-timeout must be positive")
	}

	if config.Backend.RetryAttempts < 1 {
		return fmt.Errorf("retry-attempts must be at least 1")
	}

	if config.Cache.StatusTTL <= 0 {
		return fmt.Errorf("status-ttl must be positive")
	}

	if config.Cache.MaxOpenStreams < 1 {
		return fmt.Errorf("max-open-streams must be at least 1")
	}

	switch config.Logging.Severity {
	case LogSeverityTrace, LogSeverityDebug, LogSeverityInfo, LogSeverityWarning, LogSeverityError, LogSeverityOff:
	default:
		return fmt.Errorf("invalid log severity: %s", config.Logging.Severity)
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
