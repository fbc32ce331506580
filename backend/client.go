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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/torrentfuse/torrentfuse/internal/apierr"
	"github.com/torrentfuse/torrentfuse/internal/logger"
	"github.com/torrentfuse/torrentfuse/internal/metrics"
)

// Config configures a Client.
type Config struct {
	APIURL   string
	AuthUser string
	AuthPass string

	ReadTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RequestsPerSec float64
}

// Client wraps HTTP access to the torrent engine's API (§6).
type Client struct {
	baseURL *url.URL
	authUser, authPass string
	httpClient *http.Client

	retryAttempts  int
	retryBaseDelay time.Duration

	limiter *rate.Limiter

	log     *logger.Logger
	metrics *metrics.Handle
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api-url: %w", err)
	}

	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 20
	}

	return &Client{
		baseURL:        u,
		authUser:       cfg.AuthUser,
		authPass:       cfg.AuthPass,
		httpClient:     &http.Client{Timeout: cfg.ReadTimeout},
		retryAttempts:  attempts,
		retryBaseDelay: baseDelay,
		limiter:        rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:            log,
		metrics:        metrics.New(),
	}, nil
}

// WithMetrics swaps in a shared metrics handle, used by fs.NewFileSystem so
// backend retries and every other component report through one registry.
func (c *Client) WithMetrics(m *metrics.Handle) *Client {
	c.metrics = m
	return c
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

// doRequest issues method/path with the given extra headers, applying rate
// limiting, Basic Auth and the retry policy in §4.A. On success the caller
// owns resp.Body and must close it.
func (c *Client) doRequest(ctx context.Context, method, path string, headers http.Header) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apierr.Wrap(apierr.KindNotReady, "rate limiter wait cancelled", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), nil)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInvalidArgument, "building request", err)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if c.authUser != "" || c.authPass != "" {
			req.SetBasicAuth(c.authUser, c.authPass)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isTransientTransportError(err) && attempt < c.retryAttempts-1 {
				c.metrics.BackendRetries.WithLabelValues("network").Inc()
				if err := sleepBackoff(ctx, c.retryBaseDelay, attempt, nil); err != nil {
					return nil, err
				}
				continue
			}
			return nil, apierr.Wrap(apierr.KindNetworkError, fmt.Sprintf("%s %s", method, path), err)
		}

		if isRetryableStatus(resp.StatusCode) {
			c.metrics.BackendRetries.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			lastErr = fmt.Errorf("transient status %d", resp.StatusCode)
			waitErr := sleepBackoff(ctx, c.retryBaseDelay, attempt, resp)
			resp.Body.Close()
			if waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode >= 400 {
			return nil, errorForStatus(resp)
		}

		return resp, nil
	}

	return nil, apierr.Wrap(apierr.KindNotReady, "exhausted retries", lastErr)
}

// sleepBackoff waits out backoffDelay(base, attempt, resp), the single sleep
// point between attempts, or returns early if ctx is cancelled first.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int, resp *http.Response) error {
	select {
	case <-time.After(backoffDelay(base, attempt, resp)):
		return nil
	case <-ctx.Done():
		return apierr.Wrap(apierr.KindNotReady, "request cancelled during backoff", ctx.Err())
	}
}

func isTransientTransportError(err error) bool {
	// Any transport-level failure (timeout, connection reset, DNS) is
	// treated as transient and retried up to the attempt budget; the
	// final attempt's error surfaces as NetworkError above.
	return err != nil
}

// errorForStatus maps a non-2xx, non-retryable response to the error
// taxonomy (§4.A/§7).
func errorForStatus(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("%s: %s", resp.Request.URL.Path, string(body))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return apierr.New(apierr.KindNotFound, msg)
	case http.StatusBadRequest, http.StatusRequestedRangeNotSatisfiable:
		return apierr.New(apierr.KindInvalidArgument, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apierr.New(apierr.KindUnauthorized, msg)
	case http.StatusLocked:
		return apierr.New(apierr.KindNotReady, msg)
	default:
		if resp.StatusCode >= 500 {
			return apierr.New(apierr.KindIoError, msg)
		}
		return apierr.New(apierr.KindOther, msg)
	}
}
