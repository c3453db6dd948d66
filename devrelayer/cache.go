package devrelayer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/metaswap/relay/go/types"
)

// DefaultReplayTTL is how long a successful execution is replayed to retries
const DefaultReplayTTL = 10 * time.Minute

// CacheStatus is the result of ReplayCache.CheckAndMark
type CacheStatus int

const (
	// CacheMiss means the caller owns the key and must Complete or Fail it
	CacheMiss CacheStatus = iota
	// CacheHit means a successful execution of the same request is cached
	CacheHit
	// CacheInFlight means another handler is executing the same request
	CacheInFlight
)

// ReplayCache deduplicates identical signed requests. A client retrying after
// a timeout receives the original result instead of a nonce failure, and two
// concurrent copies of a request execute once.
type ReplayCache struct {
	mu       sync.Mutex
	results  map[string]*types.Response
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewReplayCache creates a cache keeping successful results for ttl
func NewReplayCache(ttl time.Duration) *ReplayCache {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayCache{
		results:  make(map[string]*types.Response),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// RequestKey identifies a relay request by its method and signed params
func RequestKey(method string, params []interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(method))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckAndMark returns a cached result, the channel of an in-flight
// execution, or marks key in-flight and returns the channel to release
func (c *ReplayCache) CheckAndMark(key string) (CacheStatus, *types.Response, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result := c.getLocked(key); result != nil {
		return CacheHit, result, nil
	}
	if done, ok := c.inFlight[key]; ok {
		return CacheInFlight, nil, done
	}
	done := make(chan struct{})
	c.inFlight[key] = done
	return CacheMiss, nil, done
}

// Wait blocks until the in-flight execution of key finishes. A nil result
// means it failed and the caller may execute the request itself.
func (c *ReplayCache) Wait(ctx context.Context, key string, done chan struct{}) (*types.Response, error) {
	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.getLocked(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete caches resp for key and releases waiters
func (c *ReplayCache) Complete(key string, resp *types.Response, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.results[key] = resp
	c.expiry[key] = now.Add(c.ttl)
	delete(c.inFlight, key)
	close(done)

	for k, exp := range c.expiry {
		if now.After(exp) {
			delete(c.results, k)
			delete(c.expiry, k)
		}
	}
}

// Fail releases waiters without caching anything
func (c *ReplayCache) Fail(key string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
	close(done)
}

// Len returns the number of cached results, expired entries included
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *ReplayCache) getLocked(key string) *types.Response {
	exp, ok := c.expiry[key]
	if !ok {
		return nil
	}
	if c.now().After(exp) {
		delete(c.results, key)
		delete(c.expiry, key)
		return nil
	}
	return c.results[key]
}
