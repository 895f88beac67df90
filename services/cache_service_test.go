package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectStore is an in-memory durable tier for cache tests.
type fakeObjectStore struct {
	mu       sync.Mutex
	objects  map[string]json.RawMessage
	writeErr error
	reads    []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string]json.RawMessage{}}
}

func (f *fakeObjectStore) ReadObject(ctx context.Context, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, key)
	payload, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return payload, nil
}

func (f *fakeObjectStore) WriteObject(ctx context.Context, key string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.objects[key] = payload
	return nil
}

func (f *fakeObjectStore) get(key string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.objects[key]
	return payload, ok
}

var testDay = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

func newTestCacheService(store ObjectStore) *CacheService {
	cs := NewCacheService(store)
	cs.now = func() time.Time { return testDay }
	return cs
}

func TestCacheWriteHitsMemoryAndDurableTier(t *testing.T) {
	store := newFakeObjectStore()
	cs := newTestCacheService(store)

	require.NoError(t, cs.Write(context.Background(), "tickers", []string{"GAW", "BARC"}))
	cs.WaitForWrites()

	// Memory tier serves the read without touching the store.
	var tickers []string
	require.NoError(t, cs.ReadInto(context.Background(), "tickers", &tickers))
	assert.Equal(t, []string{"GAW", "BARC"}, tickers)
	assert.Empty(t, store.reads)

	// Durable tier holds today's dated document.
	payload, ok := store.get("tickers-2026-08-31")
	require.True(t, ok)
	assert.JSONEq(t, `["GAW","BARC"]`, string(payload))
}

func TestCacheReadWalksBackThroughDatedKeys(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["heatmaps-2026-08-28"] = json.RawMessage(`{"stale":false}`)

	cs := newTestCacheService(store)

	payload, err := cs.Read(context.Background(), "heatmaps")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stale":false}`, string(payload))

	// The probe stops at the first hit, three days back.
	assert.Equal(t, []string{
		"heatmaps-2026-08-31",
		"heatmaps-2026-08-30",
		"heatmaps-2026-08-29",
		"heatmaps-2026-08-28",
	}, store.reads)

	// The hit repopulated memory; the next read skips the store.
	store.reads = nil
	_, err = cs.Read(context.Background(), "heatmaps")
	require.NoError(t, err)
	assert.Empty(t, store.reads)
}

func TestCacheReadMissesBeyondWalkbackWindow(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["tickers-2026-08-23"] = json.RawMessage(`["GAW"]`) // 8 days old

	cs := newTestCacheService(store)

	_, err := cs.Read(context.Background(), "tickers")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheReadAtWalkbackBoundaryHits(t *testing.T) {
	store := newFakeObjectStore()
	store.objects["tickers-2026-08-24"] = json.RawMessage(`["GAW"]`) // exactly 7 days old

	cs := newTestCacheService(store)

	payload, err := cs.Read(context.Background(), "tickers")
	require.NoError(t, err)
	assert.JSONEq(t, `["GAW"]`, string(payload))
}

func TestCacheWithoutDurableStoreStillServesMemory(t *testing.T) {
	cs := newTestCacheService(nil)

	_, err := cs.Read(context.Background(), "tickers")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cs.Write(context.Background(), "tickers", []string{"GAW"}))

	var tickers []string
	require.NoError(t, cs.ReadInto(context.Background(), "tickers", &tickers))
	assert.Equal(t, []string{"GAW"}, tickers)
}

func TestCacheDurableWriteFailureInvokesHookNotCaller(t *testing.T) {
	store := newFakeObjectStore()
	store.writeErr = errors.New("connection reset")

	cs := newTestCacheService(store)

	var mu sync.Mutex
	var failedKey string
	cs.SetStoreErrorHandler(func(key string, err error) {
		mu.Lock()
		failedKey = key
		mu.Unlock()
	})

	// The caller still succeeds; only the hook sees the failure.
	require.NoError(t, cs.Write(context.Background(), "fundamentals", map[string]int{"GAW": 1}))
	cs.WaitForWrites()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "fundamentals-2026-08-31", failedKey)
}

func TestDatedCacheKey(t *testing.T) {
	assert.Equal(t, "tickers-2026-08-31", DatedCacheKey("tickers", testDay))
}
