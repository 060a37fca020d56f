// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the bounded store of optimized syntax trees.
//
// Entries are keyed by code hash and evicted by capacity (true LRU over
// last access, not insertion order) or by age (lazy TTL checked on
// read), whichever comes first. The cache is memory-only: losing it
// costs a recompile, never correctness.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PathanWasim/AEGIS/services/engine/ast"
	"github.com/PathanWasim/AEGIS/services/engine/optimizer"
)

// Default configuration values.
const (
	// DefaultMaxSize is the default maximum number of cached programs.
	DefaultMaxSize = 100

	// DefaultMaxAge is the default TTL for cached entries.
	DefaultMaxAge = time.Hour
)

// CachedCode is one cached optimization result.
//
// Treat entries returned by the cache as read-only; all mutation (access
// bookkeeping, performance stats) goes through cache methods.
type CachedCode struct {
	// CodeHash identifies the source program.
	CodeHash string

	// Original is the tree as parsed; Optimized is the rewritten tree
	// actually executed. The two never alias.
	Original  ast.Program
	Optimized ast.Program

	// Flags records which rewrites the optimizer applied.
	Flags optimizer.Flags

	// CompileTime is how long optimization took.
	CompileTime time.Duration

	// CreatedAt anchors the TTL; LastAccessed drives LRU ordering.
	CreatedAt    time.Time
	LastAccessed time.Time

	// AccessCount is the number of cache hits on this entry.
	AccessCount int64

	// Running performance statistics, updated per optimized run.
	AvgExecutionTime  time.Duration
	BestExecutionTime time.Duration
	AvgSpeedup        float64
	BestSpeedup       float64
	sampleCount       int64

	lruElement *list.Element
}

// Stats contains cache observability counters.
type Stats struct {
	EntryCount   int           `json:"entry_count"`
	Hits         int64         `json:"hits"`
	Misses       int64         `json:"misses"`
	Evictions    int64         `json:"evictions"`
	Expirations  int64         `json:"expirations"`
	Compilations int64         `json:"compilations"`
	MaxSize      int           `json:"max_size"`
	MaxAge       time.Duration `json:"max_age"`
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Options configures a CodeCache.
type Options struct {
	MaxSize int
	MaxAge  time.Duration
}

// DefaultOptions returns the reference defaults.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize, MaxAge: DefaultMaxAge}
}

// Option is a functional option for configuring a CodeCache.
type Option func(*Options)

// WithMaxSize sets the entry capacity.
func WithMaxSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSize = n
		}
	}
}

// WithMaxAge sets the entry TTL.
func WithMaxAge(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.MaxAge = d
		}
	}
}

// CodeCache is the bounded hash-keyed store of optimized trees.
//
// Thread Safety: safe for concurrent use.
type CodeCache struct {
	mu      sync.Mutex
	entries map[string]*CachedCode
	lru     *list.List // front = most recently used, values are code hashes
	flight  singleflight.Group
	options Options

	hits         int64
	misses       int64
	evictions    int64
	expirations  int64
	compilations int64
}

// New creates a CodeCache.
func New(opts ...Option) *CodeCache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &CodeCache{
		entries: make(map[string]*CachedCode),
		lru:     list.New(),
		options: options,
	}
}

// Get returns the entry for a hash if present and not expired.
//
// Description:
//
//	A present entry older than MaxAge is removed on the spot (lazy TTL
//	eviction) and counts as a miss. A live entry has its access count
//	and recency bumped and counts as a hit.
func (c *CodeCache) Get(codeHash string) (*CachedCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[codeHash]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Since(entry.CreatedAt) > c.options.MaxAge {
		c.removeLocked(codeHash, entry)
		atomic.AddInt64(&c.expirations, 1)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = time.Now()
	c.lru.MoveToFront(entry.lruElement)
	atomic.AddInt64(&c.hits, 1)
	return entry, true
}

// Put inserts or replaces the entry for a hash.
//
// Description:
//
//	At capacity, the single entry with the oldest LastAccessed is
//	evicted first (true LRU). Replacing an existing hash refreshes its
//	recency without evicting.
func (c *CodeCache) Put(codeHash string, entry *CachedCode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry.CodeHash = codeHash
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.LastAccessed = now

	if existing, ok := c.entries[codeHash]; ok {
		entry.lruElement = existing.lruElement
		c.entries[codeHash] = entry
		c.lru.MoveToFront(entry.lruElement)
		return
	}

	if len(c.entries) >= c.options.MaxSize {
		c.evictOldestLocked()
	}
	entry.lruElement = c.lru.PushFront(codeHash)
	c.entries[codeHash] = entry
	atomic.AddInt64(&c.compilations, 1)
}

// GetOrCompile returns the cached entry for a hash or compiles one.
//
// Description:
//
//	Concurrent compiles of the same hash are deduplicated with
//	singleflight (only one compile runs; the rest share its result).
//
// Inputs:
//
//	codeHash - Program identity.
//	compile - Builds the entry on a miss.
//
// Outputs:
//
//	*CachedCode - The live entry.
//	bool - True on a cache hit, false when compile ran.
//	error - The compile error, if any.
func (c *CodeCache) GetOrCompile(codeHash string, compile func() (*CachedCode, error)) (*CachedCode, bool, error) {
	if entry, ok := c.Get(codeHash); ok {
		return entry, true, nil
	}

	result, err, _ := c.flight.Do(codeHash, func() (interface{}, error) {
		// Re-check: another caller may have compiled while we queued.
		if entry, ok := c.Get(codeHash); ok {
			return entry, nil
		}
		entry, err := compile()
		if err != nil {
			return nil, err
		}
		c.Put(codeHash, entry)
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result.(*CachedCode), false, nil
}

// UpdatePerformanceStats folds one optimized run into an entry's
// running statistics.
//
// Incremental averages: new_avg = (old_avg*n + x) / (n+1). Best values
// track the minimum execution time and maximum speedup.
func (c *CodeCache) UpdatePerformanceStats(codeHash string, executionTime time.Duration, speedup float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[codeHash]
	if !ok {
		return
	}
	n := entry.sampleCount
	entry.AvgExecutionTime = time.Duration(
		(int64(entry.AvgExecutionTime)*n + int64(executionTime)) / (n + 1))
	entry.AvgSpeedup = (entry.AvgSpeedup*float64(n) + speedup) / float64(n+1)
	entry.sampleCount = n + 1

	if entry.BestExecutionTime == 0 || executionTime < entry.BestExecutionTime {
		entry.BestExecutionTime = executionTime
	}
	if speedup > entry.BestSpeedup {
		entry.BestSpeedup = speedup
	}
}

// Clear removes the entry for one hash (rollback path).
//
// Outputs:
//
//	bool - True if an entry was removed.
func (c *CodeCache) Clear(codeHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[codeHash]
	if !ok {
		return false
	}
	c.removeLocked(codeHash, entry)
	return true
}

// ClearAll empties the cache.
func (c *CodeCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedCode)
	c.lru.Init()
}

// CleanupExpired removes every entry older than MaxAge.
//
// Outputs:
//
//	int - Number of entries removed.
func (c *CodeCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for hash, entry := range c.entries {
		if time.Since(entry.CreatedAt) > c.options.MaxAge {
			c.removeLocked(hash, entry)
			atomic.AddInt64(&c.expirations, 1)
			removed++
		}
	}
	return removed
}

// Len returns the current entry count.
func (c *CodeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns the cache counters.
func (c *CodeCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		EntryCount:   len(c.entries),
		Hits:         atomic.LoadInt64(&c.hits),
		Misses:       atomic.LoadInt64(&c.misses),
		Evictions:    atomic.LoadInt64(&c.evictions),
		Expirations:  atomic.LoadInt64(&c.expirations),
		Compilations: atomic.LoadInt64(&c.compilations),
		MaxSize:      c.options.MaxSize,
		MaxAge:       c.options.MaxAge,
	}
}

// evictOldestLocked removes the entry with the oldest LastAccessed.
// Caller must hold c.mu.
func (c *CodeCache) evictOldestLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	hash := back.Value.(string)
	if entry, ok := c.entries[hash]; ok {
		c.removeLocked(hash, entry)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// removeLocked removes an entry. Caller must hold c.mu.
func (c *CodeCache) removeLocked(codeHash string, entry *CachedCode) {
	if entry.lruElement != nil {
		c.lru.Remove(entry.lruElement)
		entry.lruElement = nil
	}
	delete(c.entries, codeHash)
}
