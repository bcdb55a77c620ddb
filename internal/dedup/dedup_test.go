package dedup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGroupCollapsesConcurrentCalls(t *testing.T) {
	g := New[int](0)
	var calls atomic.Int32
	release := make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give every caller time to join the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestGroupCachesForTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := New[string](time.Minute)
	g.now = func() time.Time { return now }

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, shared, err := g.Do(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.False(t, shared)

	_, shared, _ = g.Do(context.Background(), "k", fn)
	assert.True(t, shared, "second call should be served from cache")
	assert.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	g.Do(context.Background(), "k", fn)
	assert.Equal(t, 2, calls, "expired entry should be refreshed")

	g.Forget("k")
	g.Do(context.Background(), "k", fn)
	assert.Equal(t, 3, calls, "forgotten entry should be refreshed")
}

func TestGroupDoesNotCacheErrors(t *testing.T) {
	g := New[int](time.Minute)
	boom := errors.New("boom")
	calls := 0

	for i := 0; i < 2; i++ {
		_, _, err := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			calls++
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, g.Len())
}

func TestGroupCallerCancellation(t *testing.T) {
	g := New[int](0)
	release := make(chan struct{})
	done := make(chan struct{})

	// The first caller starts the shared call and waits for it.
	go func() {
		defer close(done)
		v, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (int, error) {
			<-release
			return 7, ctx.Err()
		})
		assert.NoError(t, err)
		assert.Equal(t, 7, v)
	}()
	time.Sleep(20 * time.Millisecond)

	// A second caller gives up early; the shared call keeps running.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := g.Do(ctx, "k", func(context.Context) (int, error) { return 0, nil })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key(), 64)
}

func TestFetcherDedupsAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), time.Minute)
	ctx := context.Background()

	resp, shared, err := f.Get(ctx, srv.URL+"/data")
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

	_, shared, err = f.Get(ctx, srv.URL+"/data")
	require.NoError(t, err)
	assert.True(t, shared)
	assert.Equal(t, int32(1), hits.Load())

	_, _, err = f.Get(ctx, srv.URL+"/missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Response.StatusCode)

	_, _, _ = f.Get(ctx, srv.URL+"/missing")
	assert.Equal(t, int32(3), hits.Load(), "non-2xx responses must not be cached")

	srv.Client().CloseIdleConnections()
}
