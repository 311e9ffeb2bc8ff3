package openai

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
)

// CachedJudge wraps a Judge with an in-memory LRU cache. Concurrent identical
// requests share one upstream call. Failed calls are never cached.
//
// The shared call is detached from any single caller's cancellation and bounded
// by its own timeout; a caller that gives up stops waiting without failing the
// others.
type CachedJudge struct {
	inner   domain.Judge
	tags    *lruCache[[]string]
	scores  *lruCache[uint64]
	group   singleflight.Group
	timeout time.Duration
	metrics *observability.Metrics
}

// NewCachedJudge creates a cache decorator around a judge. Each operation
// keeps up to maxEntries results. A non-positive timeout leaves shared calls
// bounded only by the inner judge.
func NewCachedJudge(inner domain.Judge, maxEntries int, timeout time.Duration, metrics *observability.Metrics) *CachedJudge {
	return &CachedJudge{
		inner:   inner,
		tags:    newLRUCache[[]string](maxEntries),
		scores:  newLRUCache[uint64](maxEntries),
		timeout: timeout,
		metrics: metrics,
	}
}

func (c *CachedJudge) SuggestTags(ctx context.Context, text string) ([]string, error) {
	key := "tags:" + text
	if tags, ok := c.tags.get(key); ok {
		c.metrics.JudgeCache.WithLabelValues(opTags, "hit").Inc()
		return slices.Clone(tags), nil
	}
	c.metrics.JudgeCache.WithLabelValues(opTags, "miss").Inc()

	v, err := c.shared(ctx, key, func(callCtx context.Context) (any, error) {
		if tags, ok := c.tags.get(key); ok {
			return tags, nil
		}
		tags, err := c.inner.SuggestTags(callCtx, text)
		if err != nil {
			return nil, err
		}
		c.tags.put(key, tags)
		return tags, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

func (c *CachedJudge) ScoreTrust(ctx context.Context, text string, tags []string) (uint64, error) {
	key := trustKey(text, tags)
	if score, ok := c.scores.get(key); ok {
		c.metrics.JudgeCache.WithLabelValues(opTrust, "hit").Inc()
		return score, nil
	}
	c.metrics.JudgeCache.WithLabelValues(opTrust, "miss").Inc()

	v, err := c.shared(ctx, key, func(callCtx context.Context) (any, error) {
		if score, ok := c.scores.get(key); ok {
			return score, nil
		}
		score, err := c.inner.ScoreTrust(callCtx, text, tags)
		if err != nil {
			return nil, err
		}
		c.scores.put(key, score)
		return score, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// shared runs fn once per key across concurrent callers. fn gets a context
// that keeps ctx's values but not its cancellation.
func (c *CachedJudge) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, c.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// trustKey length-prefixes every part so no tag or text content can collide
// with another tag split.
func trustKey(text string, tags []string) string {
	var b strings.Builder
	b.WriteString("trust:")
	b.WriteString(strconv.Itoa(len(tags)))
	for _, t := range tags {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(t)))
		b.WriteByte(':')
		b.WriteString(t)
	}
	b.WriteByte('|')
	b.WriteString(text)
	return b.String()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
