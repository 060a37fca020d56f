// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/config"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/monitor"
	"github.com/PathanWasim/AEGIS/services/engine/trust"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func ptr[T any](v T) *T { return &v }

func TestExecute_FirstRunIsSandboxed(t *testing.T) {
	p := newPipeline(t)
	source := "x = 10\nprint x"

	res := p.Execute(source)
	require.True(t, res.Success, "error: %s", res.ErrorMessage)

	assert.Equal(t, []string{"10"}, res.Output)
	assert.Equal(t, string(interp.ModeSandboxed), res.ExecutionMode)
	assert.Equal(t, trust.CodeHash(source), res.CodeHash)
	assert.InDelta(t, 0.14, res.TrustScore, 1e-9)
	assert.Equal(t, "NONE", res.TrustLevel)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.RollbackEvents)
	assert.False(t, res.CacheHit)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, int64(3), res.Metrics.InstructionCount)
}

// A small clean program earns both fast-and-small bonuses every run
// and crosses the default threshold on its seventh execution, so the
// eighth run is promoted to the optimized tier.
func TestExecute_PromotionAfterSevenCleanRuns(t *testing.T) {
	p := newPipeline(t)
	source := "x = 10\nprint x"
	wantScores := []float64{0.14, 0.28, 0.42, 0.56, 0.70, 0.89, 1.08}

	for i, want := range wantScores {
		res := p.Execute(source)
		require.True(t, res.Success, "run %d: %s", i+1, res.ErrorMessage)
		assert.Equal(t, string(interp.ModeSandboxed), res.ExecutionMode, "run %d", i+1)
		assert.InDelta(t, want, res.TrustScore, 1e-9, "run %d", i+1)
	}

	promoted := p.Execute(source)
	require.True(t, promoted.Success)
	assert.Equal(t, string(interp.ModeOptimized), promoted.ExecutionMode)
	assert.False(t, promoted.CacheHit, "first optimized run compiles")
	assert.GreaterOrEqual(t, promoted.SpeedupFactor, 2.0)
	assert.Equal(t, []string{"10"}, promoted.Output)

	cached := p.Execute(source)
	require.True(t, cached.Success)
	assert.Equal(t, string(interp.ModeOptimized), cached.ExecutionMode)
	assert.True(t, cached.CacheHit)
}

func TestExecute_RuntimeFaultScoresZero(t *testing.T) {
	p := newPipeline(t)

	res := p.Execute("a = 1\nb = 0\nc = a / b")
	assert.False(t, res.Success)
	assert.Equal(t, string(interp.ModeSandboxed), res.ExecutionMode)
	assert.Equal(t, string(aegiserr.CategoryRuntime), res.ErrorCategory)
	assert.Contains(t, res.ErrorMessage, "division by zero")
	assert.Zero(t, res.TrustScore, "penalty clamps at the floor")
	// Statements before the fault still produced their effects.
	assert.Empty(t, res.Output)
}

func TestExecute_SandboxViolationBlocksPromotion(t *testing.T) {
	p := newPipeline(t)
	p.Configure(Settings{ViolationThreshold: ptr(int64(2))})

	source := "x = 10\nprint x"
	res := p.Execute(source)
	assert.False(t, res.Success)
	assert.Equal(t, string(aegiserr.CategorySecurity), res.ErrorCategory)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, monitor.ViolationInstructionLimit, res.Violations[0].Kind)
	// Sandboxed violations never reach the rollback handler.
	assert.Empty(t, res.RollbackEvents)
	assert.Zero(t, res.TrustScore)
}

// The core containment path: a promoted program violates its
// instruction budget in the optimized tier, which must roll it back,
// purge its cached tree, and revoke its trust in the same call.
func TestExecute_OptimizedViolationTriggersRollback(t *testing.T) {
	p := newPipeline(t)
	source := "x = 10\nprint x"

	for i := 0; i < 7; i++ {
		require.True(t, p.Execute(source).Success)
	}

	// Tighten the budget so the promoted run violates immediately.
	p.Configure(Settings{ViolationThreshold: ptr(int64(1))})

	res := p.Execute(source)
	assert.False(t, res.Success)
	assert.Equal(t, string(interp.ModeOptimized), res.ExecutionMode)
	assert.Equal(t, string(aegiserr.CategorySecurity), res.ErrorCategory)
	assert.Zero(t, res.TrustScore, "trust is revoked on rollback")
	assert.Equal(t, "NONE", res.TrustLevel)

	require.Len(t, res.RollbackEvents, 1)
	ev := res.RollbackEvents[0]
	assert.Equal(t, monitor.ViolationInstructionLimit, ev.ViolationType)
	assert.Equal(t, res.CodeHash, ev.CodeHash)
	assert.True(t, ev.CacheCleared)
	assert.InDelta(t, 1.08, ev.TrustScoreBefore, 1e-9)
	assert.Zero(t, ev.TrustScoreAfter)
	assert.Equal(t, 0, p.Cache().Len(), "optimized tree purged")

	// The next run is demoted back to the sandbox.
	p.Configure(Settings{ViolationThreshold: ptr(int64(1000))})
	demoted := p.Execute(source)
	require.True(t, demoted.Success)
	assert.Equal(t, string(interp.ModeSandboxed), demoted.ExecutionMode)
}

func TestExecute_PreExecutionFailures(t *testing.T) {
	cases := []struct {
		name     string
		source   string
		category aegiserr.Category
	}{
		{"lexical", "x = @", aegiserr.CategoryLexical},
		{"syntax", "print 5", aegiserr.CategorySyntax},
		{"semantic", "print x", aegiserr.CategorySemantic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(t)
			res := p.Execute(tc.source)
			assert.False(t, res.Success)
			assert.Equal(t, ModeFailed, res.ExecutionMode)
			assert.Equal(t, string(tc.category), res.ErrorCategory)
			assert.NotEmpty(t, res.ErrorMessage)
			assert.Empty(t, res.Output)
			assert.Zero(t, res.ExecutionTime)

			// Rejected programs never enter the trust ledger.
			assert.Zero(t, p.Trust().GetSummary().TrackedPrograms)
		})
	}
}

func TestExecuteBatch(t *testing.T) {
	p := newPipeline(t)
	batch := p.ExecuteBatch([]string{
		"x = 1\nprint x",
		"y = 1\nz = 0\nprint w",
		"a = 2 + 3\nprint a",
	})

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.InDelta(t, 2.0/3.0, batch.SuccessRate, 1e-9)
	require.Len(t, batch.Results, 3)
	assert.True(t, batch.Results[0].Success)
	assert.False(t, batch.Results[1].Success)
	assert.True(t, batch.Results[2].Success)
}

func TestConfigure_LowerThresholdPromotesSooner(t *testing.T) {
	p := newPipeline(t)
	p.Configure(Settings{TrustThreshold: ptr(0.1)})
	source := "x = 10\nprint x"

	// Three runs satisfy both the minimum count and the lowered score.
	for i := 0; i < 3; i++ {
		res := p.Execute(source)
		require.True(t, res.Success)
		assert.Equal(t, string(interp.ModeSandboxed), res.ExecutionMode)
	}

	res := p.Execute(source)
	assert.Equal(t, string(interp.ModeOptimized), res.ExecutionMode)
}

func TestConfigure_OptimizationDisabledStaysSandboxed(t *testing.T) {
	p := newPipeline(t)
	p.Configure(Settings{
		TrustThreshold:      ptr(0.1),
		OptimizationEnabled: ptr(false),
	})
	source := "x = 10\nprint x"

	for i := 0; i < 5; i++ {
		res := p.Execute(source)
		assert.Equal(t, string(interp.ModeSandboxed), res.ExecutionMode)
	}
}

func TestExecute_RollbackDisabledKeepsCacheAndTrust(t *testing.T) {
	p := newPipeline(t)
	source := "x = 10\nprint x"
	for i := 0; i < 7; i++ {
		require.True(t, p.Execute(source).Success)
	}

	p.Configure(Settings{
		ViolationThreshold: ptr(int64(1)),
		RollbackEnabled:    ptr(false),
	})

	res := p.Execute(source)
	assert.False(t, res.Success)
	assert.Empty(t, res.RollbackEvents)
	assert.Equal(t, 1, p.Cache().Len(), "cache untouched without rollback")
	// The regular per-run penalty still applies.
	assert.InDelta(t, 0.58, res.TrustScore, 1e-9)
}

func TestStatus(t *testing.T) {
	p := newPipeline(t)
	p.Execute("x = 1\nprint x")
	p.Execute("y = 2\nprint y")

	status := p.Status()
	assert.Equal(t, 2, status.Trust.TrackedPrograms)
	assert.Equal(t, 2, status.Trust.TotalExecutions)
	assert.Equal(t, 2, status.Monitor.Runs)
	assert.Zero(t, status.Monitor.TotalViolations)
	assert.Zero(t, status.Rollbacks.TotalRollbacks)
	assert.Zero(t, status.Cache.EntryCount)
}

func TestCleanup_EmptyEngine(t *testing.T) {
	p := newPipeline(t)
	stale, expired := p.Cleanup()
	assert.Zero(t, stale)
	assert.Zero(t, expired)
}

// The optimized tier must be observationally identical to the sandbox
// for the same program.
func TestExecute_TierEquivalence(t *testing.T) {
	sources := []string{
		"a = 7\nb = 2\nc = a / b\nprint c",
		"x = 1\nx = 2\nx = 3\nprint x",
		"a = 2 + 3 * 4\nprint a",
	}
	for _, source := range sources {
		p := newPipeline(t)
		p.Configure(Settings{TrustThreshold: ptr(0.1)})

		sandboxed := p.Execute(source)
		require.True(t, sandboxed.Success)
		for i := 0; i < 2; i++ {
			require.True(t, p.Execute(source).Success)
		}

		optimized := p.Execute(source)
		require.True(t, optimized.Success)
		require.Equal(t, string(interp.ModeOptimized), optimized.ExecutionMode)
		assert.Equal(t, sandboxed.Output, optimized.Output, "output for:\n%s", source)
	}
}
