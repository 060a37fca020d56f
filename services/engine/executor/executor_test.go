// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/cache"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/monitor"
	"github.com/PathanWasim/AEGIS/services/engine/optimizer"
	"github.com/PathanWasim/AEGIS/services/engine/parser"
	"github.com/PathanWasim/AEGIS/services/engine/trust"
)

func TestSpeedup(t *testing.T) {
	cases := []struct {
		name  string
		flags optimizer.Flags
		want  float64
	}{
		{"no rewrites", optimizer.Flags{}, 2.0},
		{"folding only", optimizer.Flags{ConstantFolding: true}, 2.3},
		{"propagation only", optimizer.Flags{ConstantPropagation: true}, 2.25},
		{"dce only", optimizer.Flags{DeadCodeElimination: true}, 2.2},
		{"simplification only", optimizer.Flags{ExpressionSimplification: true}, 2.15},
		{
			"all rewrites",
			optimizer.Flags{
				ConstantFolding:          true,
				ConstantPropagation:      true,
				DeadCodeElimination:      true,
				ExpressionSimplification: true,
			},
			2.9,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Speedup(tc.flags), 1e-9)
		})
	}
}

type harness struct {
	cache *cache.CodeCache
	mon   *monitor.RuntimeMonitor
	exec  *OptimizedExecutor
}

func newHarness() *harness {
	codeCache := cache.New()
	mon := monitor.NewRuntimeMonitor()
	return &harness{
		cache: codeCache,
		mon:   mon,
		exec:  New(codeCache, interp.New(), mon, nil),
	}
}

// run executes one monitored optimized-tier run and returns its
// metrics and execution error.
func (h *harness) run(t *testing.T, source string) (*monitor.ExecutionMetrics, *interp.ExecutionContext, error) {
	t.Helper()
	program, err := parser.ParseSource(source)
	require.NoError(t, err)

	hash := trust.CodeHash(source)
	ctx := interp.NewContext(interp.ModeOptimized, hash)
	h.mon.Begin(ctx)
	execErr := h.exec.Execute(hash, program, ctx)
	return h.mon.End(), ctx, execErr
}

func TestExecute_ProducesSandboxOutput(t *testing.T) {
	h := newHarness()
	metrics, ctx, err := h.run(t, "a = 2 + 3\nb = a * 4\nprint b")
	require.NoError(t, err)

	assert.Equal(t, []string{"20"}, ctx.Output())
	require.NotNil(t, metrics)
	assert.True(t, metrics.OptimizationApplied)
	assert.False(t, metrics.CacheHit)
}

func TestExecute_SpeedupReflectsAppliedRewrites(t *testing.T) {
	h := newHarness()
	metrics, _, err := h.run(t, "a = 2 + 3\nprint a")
	require.NoError(t, err)

	// Constant folding is the only rewrite that fires here.
	assert.InDelta(t, 2.3, metrics.SpeedupFactor, 1e-9)
	assert.Equal(t, interp.ModeOptimized, metrics.Mode)
}

func TestExecute_SecondRunHitsCache(t *testing.T) {
	h := newHarness()
	source := "x = 10\nprint x"

	first, _, err := h.run(t, source)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, ctx, err := h.run(t, source)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, []string{"10"}, ctx.Output())
	assert.Equal(t, 1, h.cache.Len())
}

func TestExecute_RuntimeFaultPropagates(t *testing.T) {
	h := newHarness()
	metrics, _, err := h.run(t, "a = 1\nb = 0\nc = a / b")
	require.Error(t, err)
	assert.Equal(t, aegiserr.CategoryRuntime, aegiserr.CategoryOf(err))

	// The compiled tree stays cached; only the run failed.
	assert.Equal(t, 1, h.cache.Len())
	require.NotNil(t, metrics)
	assert.True(t, metrics.OptimizationApplied)
}

func TestExecute_CachedTreeSkipsDeadStores(t *testing.T) {
	h := newHarness()
	source := "x = 1\nx = 2\nprint x"
	metrics, ctx, err := h.run(t, source)
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, ctx.Output())
	// Two statements execute instead of three: one assignment tick is
	// gone relative to the sandboxed walk.
	assert.Equal(t, int64(1), metrics.AssignmentOps)

	entry, ok := h.cache.Get(trust.CodeHash(source))
	require.True(t, ok)
	assert.True(t, entry.Flags.DeadCodeElimination)
	assert.Len(t, entry.Optimized, 2)
	assert.Len(t, entry.Original, 3)
}

func TestClearCache(t *testing.T) {
	h := newHarness()
	source := "x = 10\nprint x"
	_, _, err := h.run(t, source)
	require.NoError(t, err)

	hash := trust.CodeHash(source)
	assert.True(t, h.exec.ClearCache(hash))
	assert.False(t, h.exec.ClearCache(hash), "second clear finds nothing")
	assert.Equal(t, 0, h.cache.Len())
}

// Optimized and sandboxed tiers must agree on observable behavior.
func TestExecute_EquivalentToSandbox(t *testing.T) {
	sources := []string{
		"x = 10\nprint x",
		"a = 7\nb = 2\nc = a / b\nprint c",
		"a = 1\nb = a + 0\nprint b",
		"x = 1\nx = 2\nx = 3\nprint x",
	}
	for _, source := range sources {
		program, err := parser.ParseSource(source)
		require.NoError(t, err)

		sandbox := interp.NewContext(interp.ModeSandboxed, trust.CodeHash(source))
		require.NoError(t, interp.New().Execute(program, sandbox, nil))

		h := newHarness()
		_, optimized, err := h.run(t, source)
		require.NoError(t, err)

		assert.Equal(t, sandbox.Output(), optimized.Output(), "output for:\n%s", source)
		assert.Equal(t, sandbox.Variables(), optimized.Variables(), "bindings for:\n%s", source)
	}
}
