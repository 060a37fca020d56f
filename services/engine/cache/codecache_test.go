// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PathanWasim/AEGIS/services/engine/ast"
)

func testEntry() *CachedCode {
	return &CachedCode{
		Original:  ast.Program{},
		Optimized: ast.Program{},
	}
}

func TestCache_PutGet(t *testing.T) {
	c := New()
	c.Put("h1", testEntry())

	entry, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, "h1", entry.CodeHash)
	assert.Equal(t, int64(1), entry.AccessCount)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate(), 1e-9)
}

// Inserting one entry past capacity evicts exactly the least recently
// used entry, nothing else.
func TestCache_LRUEviction(t *testing.T) {
	c := New(WithMaxSize(3))
	c.Put("h1", testEntry())
	c.Put("h2", testEntry())
	c.Put("h3", testEntry())

	// Touch h1 so h2 becomes the oldest.
	_, ok := c.Get("h1")
	require.True(t, ok)

	c.Put("h4", testEntry())
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("h2")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, hash := range []string{"h1", "h3", "h4"} {
		_, ok := c.Get(hash)
		assert.True(t, ok, "entry %s should survive", hash)
	}
	assert.Equal(t, int64(1), c.GetStats().Evictions)
}

func TestCache_ReplaceDoesNotEvict(t *testing.T) {
	c := New(WithMaxSize(2))
	c.Put("h1", testEntry())
	c.Put("h2", testEntry())
	c.Put("h1", testEntry())

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("h2")
	assert.True(t, ok)
}

func TestCache_TTLExpiration(t *testing.T) {
	c := New(WithMaxAge(10 * time.Millisecond))
	c.Put("h1", testEntry())

	_, ok := c.Get("h1")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("h1")
	assert.False(t, ok, "expired entry behaves as a miss")
	assert.Equal(t, int64(1), c.GetStats().Expirations)
	assert.Equal(t, 0, c.Len())
}

func TestCache_CleanupExpired(t *testing.T) {
	c := New(WithMaxAge(10 * time.Millisecond))
	c.Put("h1", testEntry())
	c.Put("h2", testEntry())

	time.Sleep(20 * time.Millisecond)
	c.Put("h3", testEntry())

	removed := c.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_GetOrCompile(t *testing.T) {
	c := New()
	var compiles int64

	compile := func() (*CachedCode, error) {
		atomic.AddInt64(&compiles, 1)
		return testEntry(), nil
	}

	_, hit, err := c.GetOrCompile("h1", compile)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.GetOrCompile("h1", compile)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(1), atomic.LoadInt64(&compiles))
}

func TestCache_GetOrCompileError(t *testing.T) {
	c := New()
	wantErr := errors.New("optimizer broke")

	_, _, err := c.GetOrCompile("h1", func() (*CachedCode, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, c.Len(), "failed compiles are not cached")
}

// Concurrent misses on one hash compile exactly once.
func TestCache_GetOrCompileSingleflight(t *testing.T) {
	c := New()
	var compiles int64

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompile("h1", func() (*CachedCode, error) {
				atomic.AddInt64(&compiles, 1)
				time.Sleep(5 * time.Millisecond)
				return testEntry(), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&compiles))
}

func TestCache_UpdatePerformanceStats(t *testing.T) {
	c := New()
	c.Put("h1", testEntry())

	c.UpdatePerformanceStats("h1", 100*time.Microsecond, 2.0)
	c.UpdatePerformanceStats("h1", 300*time.Microsecond, 2.6)

	entry, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, 200*time.Microsecond, entry.AvgExecutionTime)
	assert.InDelta(t, 2.3, entry.AvgSpeedup, 1e-9)
	assert.Equal(t, 100*time.Microsecond, entry.BestExecutionTime)
	assert.InDelta(t, 2.6, entry.BestSpeedup, 1e-9)

	// Unknown hashes are ignored.
	c.UpdatePerformanceStats("missing", time.Second, 1.0)
}

func TestCache_ClearAndClearAll(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("h%d", i), testEntry())
	}

	assert.True(t, c.Clear("h2"))
	assert.False(t, c.Clear("h2"), "second clear finds nothing")
	assert.Equal(t, 4, c.Len())

	c.ClearAll()
	assert.Equal(t, 0, c.Len())
}
