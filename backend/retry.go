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
	"net/http"
	"strconv"
	"time"
)

// retryableStatusCodes are the HTTP statuses the retry policy treats as
// transient (§4.A).
var retryableStatusCodes = []int{
	http.StatusRequestTimeout,      // 408
	http.StatusTooManyRequests,     // 429
	http.StatusBadGateway,          // 502
	http.StatusServiceUnavailable,  // 503
	http.StatusGatewayTimeout,      // 504
}

func isRetryableStatus(code int) bool {
	for _, c := range retryableStatusCodes {
		if code == c {
			return true
		}
	}
	return false
}

// retryAfterDelay parses a Retry-After header, honoring both the
// seconds-delta and HTTP-date forms. It returns ok=false if the header is
// absent or unparseable.
func retryAfterDelay(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(v); err == nil {
		d := time.Until(when)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// backoffDelay implements base_delay * (attempt+1), the policy from §4.A,
// unless the response carried a Retry-After that should be honored instead.
func backoffDelay(base time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if d, ok := retryAfterDelay(resp.Header); ok {
			return d
		}
	}
	return base * time.Duration(attempt+1)
}
