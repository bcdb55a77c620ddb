package dedup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxFetchBody = 4 << 20 // 4MB

// Response is a fully-read HTTP response shared between deduplicated
// callers. Treat it as immutable.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher issues GET requests, collapsing concurrent requests for the same
// URL into one round trip and caching 2xx responses for the group's TTL.
type Fetcher struct {
	client *http.Client
	group  *Group[*Response]
}

// NewFetcher wraps client (http.DefaultClient when nil).
func NewFetcher(client *http.Client, ttl time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, group: New[*Response](ttl)}
}

// Get fetches url. shared reports whether the response came from another
// caller's request or the cache.
func (f *Fetcher) Get(ctx context.Context, url string) (resp *Response, shared bool, err error) {
	return f.group.Do(ctx, Key("GET", url), func(ctx context.Context) (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		res, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxFetchBody))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		out := &Response{StatusCode: res.StatusCode, Header: res.Header.Clone(), Body: body}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			// Returned as an error so non-2xx answers are shared with
			// concurrent callers but never cached.
			return nil, &StatusError{Response: out}
		}
		return out, nil
	})
}

// Forget drops any cached response for url.
func (f *Fetcher) Forget(url string) {
	f.group.Forget(Key("GET", url))
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Response.StatusCode)
}
