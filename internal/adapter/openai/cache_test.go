package openai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingJudge struct {
	tagCalls   atomic.Int32
	scoreCalls atomic.Int32
	tags       []string
	score      uint64
	err        error
	delay      time.Duration
}

func (m *countingJudge) SuggestTags(_ context.Context, _ string) ([]string, error) {
	m.tagCalls.Add(1)
	time.Sleep(m.delay)
	if m.err != nil {
		return nil, m.err
	}
	return m.tags, nil
}

func (m *countingJudge) ScoreTrust(_ context.Context, _ string, _ []string) (uint64, error) {
	m.scoreCalls.Add(1)
	time.Sleep(m.delay)
	if m.err != nil {
		return 0, m.err
	}
	return m.score, nil
}

// blockingJudge holds every call until release is closed or the call's
// context ends, and records how the call finished.
type blockingJudge struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	callErr error
}

func (m *blockingJudge) finish(err error) {
	m.mu.Lock()
	m.callErr = err
	m.mu.Unlock()
}

func (m *blockingJudge) lastErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callErr
}

func newBlockingJudge() *blockingJudge {
	return &blockingJudge{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (m *blockingJudge) SuggestTags(_ context.Context, _ string) ([]string, error) {
	return nil, errors.New("not used")
}

func (m *blockingJudge) ScoreTrust(ctx context.Context, _ string, _ []string) (uint64, error) {
	m.calls.Add(1)
	m.started <- struct{}{}
	select {
	case <-m.release:
		m.finish(errNone)
		return 61, nil
	case <-ctx.Done():
		m.finish(ctx.Err())
		return 0, ctx.Err()
	}
}

var errNone = errors.New("none")

// --- CachedJudge tests ---

func TestCachedJudge_TagsCacheHit(t *testing.T) {
	inner := &countingJudge{tags: []string{"police"}}
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())

	t1, err := cached.SuggestTags(context.Background(), "report")
	require.NoError(t, err)
	t1[0] = "mutated"

	t2, err := cached.SuggestTags(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, []string{"police"}, t2)

	assert.Equal(t, int32(1), inner.tagCalls.Load(), "should only call inner once")
}

func TestCachedJudge_ScoreKeyIncludesTags(t *testing.T) {
	inner := &countingJudge{score: 40}
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())

	_, _ = cached.ScoreTrust(context.Background(), "report", []string{"police"})
	_, _ = cached.ScoreTrust(context.Background(), "report", []string{"police"})
	_, _ = cached.ScoreTrust(context.Background(), "report", []string{"abuse"})

	assert.Equal(t, int32(2), inner.scoreCalls.Load())
}

func TestCachedJudge_ErrorsAreNotCached(t *testing.T) {
	inner := &countingJudge{err: domain.ErrEvaluation}
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())

	_, err := cached.ScoreTrust(context.Background(), "report", nil)
	require.ErrorIs(t, err, domain.ErrEvaluation)

	inner.err = nil
	inner.score = 70
	score, err := cached.ScoreTrust(context.Background(), "report", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), score)
	assert.Equal(t, int32(2), inner.scoreCalls.Load())
}

func TestCachedJudge_CoalescesConcurrentRequests(t *testing.T) {
	inner := &countingJudge{score: 55, delay: 100 * time.Millisecond}
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			score, err := cached.ScoreTrust(context.Background(), "same report", nil)
			if err == nil && score != 55 {
				err = errors.New("unexpected score")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.scoreCalls.Load())
}

func TestCachedJudge_ScoreKeyIsUnambiguous(t *testing.T) {
	inner := &countingJudge{score: 40}
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())
	ctx := context.Background()

	_, _ = cached.ScoreTrust(ctx, "report", []string{"a,b"})
	_, _ = cached.ScoreTrust(ctx, "report", []string{"a", "b"})
	_, _ = cached.ScoreTrust(ctx, "z", []string{"x|y"})
	_, _ = cached.ScoreTrust(ctx, "y|z", []string{"x"})
	_, _ = cached.ScoreTrust(ctx, "3:abc|t", nil)
	_, _ = cached.ScoreTrust(ctx, "t", []string{"abc"})

	assert.Equal(t, int32(6), inner.scoreCalls.Load())
	assert.NotEqual(t, trustKey("report", []string{"a,b"}), trustKey("report", []string{"a", "b"}))
}

func TestCachedJudge_CanceledCallerDoesNotFailSharedCall(t *testing.T) {
	inner := newBlockingJudge()
	cached := NewCachedJudge(inner, 10, time.Second, testMetrics())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cached.ScoreTrust(firstCtx, "report", nil)
		firstErr <- err
	}()
	<-inner.started

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan uint64, 1)
	go func() {
		score, err := cached.ScoreTrust(context.Background(), "report", nil)
		assert.NoError(t, err)
		second <- score
	}()
	time.Sleep(20 * time.Millisecond)
	close(inner.release)

	assert.Equal(t, uint64(61), <-second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, errNone, inner.lastErr(), "shared call must not see the first caller's cancellation")
}

func TestCachedJudge_SharedCallIsBoundedByTimeout(t *testing.T) {
	inner := newBlockingJudge()
	cached := NewCachedJudge(inner, 10, 20*time.Millisecond, testMetrics())

	_, err := cached.ScoreTrust(context.Background(), "report", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, cached.scores.len())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[uint64](3)

	c.put("a", 1)
	c.put("b", 2)

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[uint64](2)

	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")
	assert.Equal(t, 2, c.len())

	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), v)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[uint64](2)

	c.put("a", 1)
	c.put("b", 2)
	c.get("a")
	c.put("c", 3)

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[uint64](2)

	c.put("a", 1)
	c.put("a", 2)

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, 1, c.len())
}

func TestLRUCache_MinimumCapacity(t *testing.T) {
	c := newLRUCache[uint64](0)

	c.put("a", 1)
	_, ok := c.get("a")
	assert.True(t, ok)
}
