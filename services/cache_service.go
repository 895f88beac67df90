package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"stock_api_backend/models"
)

// Dataset keys for the daily cache.
const (
	CacheKeyTickers      = "tickers"
	CacheKeyFundamentals = "fundamentals"
	CacheKeyHeatmaps     = "heatmaps"
)

// cacheWalkbackDays bounds how far back Read probes dated keys. A dataset
// older than this is treated as expired.
const cacheWalkbackDays = 7

// ErrObjectNotFound is returned by an ObjectStore when a key has no
// document. It marks an ordinary miss, not a storage failure.
var ErrObjectNotFound = errors.New("object not found")

// ErrCacheMiss is returned by Read when a dataset is in neither tier
// within the walkback window.
var ErrCacheMiss = errors.New("cache miss")

// ObjectStore is the durable tier of the daily cache.
type ObjectStore interface {
	ReadObject(ctx context.Context, key string) (json.RawMessage, error)
	WriteObject(ctx context.Context, key string, payload json.RawMessage) error
}

// CacheService layers a process-local memory tier over a durable object
// store. Durable documents are day-keyed ({dataset}-{YYYY-MM-DD}); memory
// holds whatever snapshot was last read or written, keyed by dataset only.
type CacheService struct {
	mu           sync.RWMutex
	memory       map[string]json.RawMessage
	store        ObjectStore
	walkbackDays int
	onStoreError func(key string, err error)
	now          func() time.Time
	writes       sync.WaitGroup
}

// Global cache service instance
var GlobalCacheService *CacheService

// InitCacheService initializes the global cache service over a store
func InitCacheService(store ObjectStore) {
	GlobalCacheService = NewCacheService(store)
	log.Println("Cache service initialized")
}

// NewCacheService creates a cache service over the given durable store.
func NewCacheService(store ObjectStore) *CacheService {
	return &CacheService{
		memory:       make(map[string]json.RawMessage),
		store:        store,
		walkbackDays: cacheWalkbackDays,
		now:          time.Now,
	}
}

// SetStoreErrorHandler installs a hook invoked when an asynchronous
// durable write fails. The failure never reaches the writer.
func (cs *CacheService) SetStoreErrorHandler(fn func(key string, err error)) {
	cs.onStoreError = fn
}

// Read returns the newest snapshot of a dataset: the memory tier if
// populated, otherwise the durable store probed from today backwards
// through the walkback window. A durable hit repopulates memory.
func (cs *CacheService) Read(ctx context.Context, key string) (json.RawMessage, error) {
	cs.mu.RLock()
	cached, ok := cs.memory[key]
	cs.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if cs.store == nil {
		return nil, ErrCacheMiss
	}

	day := cs.now()
	for i := 0; i <= cs.walkbackDays; i++ {
		datedKey := DatedCacheKey(key, day.AddDate(0, 0, -i))

		payload, err := cs.store.ReadObject(ctx, datedKey)
		if err != nil {
			if !errors.Is(err, ErrObjectNotFound) {
				log.Printf("Durable cache read failed for %s: %v", datedKey, err)
			}
			continue
		}

		log.Printf("Durable cache hit for %s", datedKey)

		cs.mu.Lock()
		cs.memory[key] = payload
		cs.mu.Unlock()

		return payload, nil
	}

	return nil, ErrCacheMiss
}

// ReadInto reads a dataset and unmarshals it into v.
func (cs *CacheService) ReadInto(ctx context.Context, key string, v interface{}) error {
	payload, err := cs.Read(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// Write stores a dataset snapshot: memory synchronously, the durable
// store asynchronously under today's dated key. A durable failure is
// reported through the error hook; the caller always succeeds once the
// memory tier is updated.
func (cs *CacheService) Write(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}

	cs.mu.Lock()
	cs.memory[key] = payload
	cs.mu.Unlock()

	if cs.store == nil {
		return nil
	}

	datedKey := DatedCacheKey(key, cs.now())

	cs.writes.Add(1)
	go func() {
		defer cs.writes.Done()

		writeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := cs.store.WriteObject(writeCtx, datedKey, payload); err != nil {
			log.Printf("Durable cache write failed for %s: %v", datedKey, err)
			if cs.onStoreError != nil {
				cs.onStoreError(datedKey, err)
			}
		}
	}()

	return nil
}

// WaitForWrites blocks until all in-flight durable writes have settled.
// Called between pipeline phases so a phase never races the persistence
// of the one before it.
func (cs *CacheService) WaitForWrites() {
	cs.writes.Wait()
}

// DatedCacheKey builds the durable key for a dataset on a given day.
func DatedCacheKey(key string, day time.Time) string {
	return fmt.Sprintf("%s-%s", key, day.Format(models.DateLayout))
}
