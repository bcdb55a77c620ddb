// Package dedup collapses concurrent identical requests into one execution
// and optionally remembers successful results for a short TTL.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates calls by key. The zero value is not usable; call New.
type Group[T any] struct {
	sf  singleflight.Group
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]entry[T]
	gen   uint64 // bumped by Forget and Purge so in-flight results are not cached
}

type entry[T any] struct {
	value   T
	expires time.Time
}

// New returns a Group that caches successful results for ttl. A zero ttl
// only collapses in-flight calls.
func New[T any](ttl time.Duration) *Group[T] {
	return &Group[T]{
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]entry[T]),
	}
}

// Do runs fn once for all concurrent callers sharing key. fn receives a
// context detached from any single caller's cancellation, so one caller
// giving up does not fail the others; that caller gets ctx.Err() instead.
// Errors are returned to every waiting caller and never cached.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := g.lookup(key); ok {
		return v, true, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(key, func() (any, error) {
		gen := g.generation()
		v, err := fn(detached)
		if err == nil {
			g.store(key, v, gen)
		}
		return v, err
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	}
}

// Forget drops the cached result for key and detaches any in-flight call,
// so the next Do starts fresh.
func (g *Group[T]) Forget(key string) {
	g.sf.Forget(key)
	g.mu.Lock()
	delete(g.cache, key)
	g.gen++
	g.mu.Unlock()
}

// Purge drops every cached result.
func (g *Group[T]) Purge() {
	g.mu.Lock()
	g.cache = make(map[string]entry[T])
	g.gen++
	g.mu.Unlock()
}

// Len returns the number of cached results, expired ones included until
// they are next looked up.
func (g *Group[T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *Group[T]) lookup(key string) (T, bool) {
	var zero T
	if g.ttl <= 0 {
		return zero, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.cache[key]
	if !ok {
		return zero, false
	}
	if !g.now().Before(e.expires) {
		delete(g.cache, key)
		return zero, false
	}
	return e.value, true
}

func (g *Group[T]) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

func (g *Group[T]) store(key string, v T, gen uint64) {
	if g.ttl <= 0 {
		return
	}
	g.mu.Lock()
	if g.gen == gen {
		g.cache[key] = entry[T]{value: v, expires: g.now().Add(g.ttl)}
	}
	g.mu.Unlock()
}

// Key hashes parts into a stable cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p)) + ":" + p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
