// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs promoted programs through the optimized tier.
//
// There is no separate evaluator: optimization only changes which tree
// is walked, never how it is walked. The executor composes the code
// cache, the optimizer, and the same sandboxed interpreter core, and
// reports a simulated speedup derived from the applied rewrite flags.
// The speedup is a reported number only; no timing manipulation occurs.
package executor

import (
	"log/slog"
	"time"

	"github.com/PathanWasim/AEGIS/services/engine/ast"
	"github.com/PathanWasim/AEGIS/services/engine/cache"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/monitor"
	"github.com/PathanWasim/AEGIS/services/engine/optimizer"
)

// Simulated speedup formula constants: base factor plus a fixed bonus
// per applied rewrite class.
const (
	BaseSpeedup              = 2.0
	BonusConstantFolding     = 0.3
	BonusDeadCodeElimination = 0.2
	BonusPropagation         = 0.25
	BonusSimplification      = 0.15
)

// Speedup computes the simulated speedup for a set of rewrite flags.
func Speedup(flags optimizer.Flags) float64 {
	speedup := BaseSpeedup
	if flags.ConstantFolding {
		speedup += BonusConstantFolding
	}
	if flags.DeadCodeElimination {
		speedup += BonusDeadCodeElimination
	}
	if flags.ConstantPropagation {
		speedup += BonusPropagation
	}
	if flags.ExpressionSimplification {
		speedup += BonusSimplification
	}
	return speedup
}

// OptimizedExecutor runs trusted programs from the code cache.
//
// Thread Safety: safe for concurrent use; per-run state lives in the
// caller-owned context and the shared components are themselves safe.
type OptimizedExecutor struct {
	cache       *cache.CodeCache
	interpreter *interp.Interpreter
	monitor     *monitor.RuntimeMonitor
	logger      *slog.Logger
}

// New creates an optimized executor over shared components.
//
// Inputs:
//
//	codeCache - The bounded optimized-tree store. Must not be nil.
//	interpreter - The same interpreter core the sandbox uses.
//	mon - The run's monitor; also serves as the interpreter hooks.
//	logger - Optional logger.
func New(codeCache *cache.CodeCache, interpreter *interp.Interpreter, mon *monitor.RuntimeMonitor, logger *slog.Logger) *OptimizedExecutor {
	return &OptimizedExecutor{
		cache:       codeCache,
		interpreter: interpreter,
		monitor:     mon,
		logger:      logger,
	}
}

// Execute runs a program through the optimized tier.
//
// Description:
//
//	Looks the hash up in the code cache; on a miss the optimizer runs
//	and the result is stored. Either way the optimized tree is walked
//	by the shared interpreter core under the monitor, which must
//	already be in optimized mode for this run. The reported execution
//	time is the measured wall time divided by the simulated speedup.
//
// Inputs:
//
//	codeHash - Program identity.
//	program - The current parse of the program (used on cache miss).
//	ctx - The run's execution context (mode optimized).
//
// Outputs:
//
//	error - The run's fault or violation, nil on success.
func (e *OptimizedExecutor) Execute(codeHash string, program ast.Program, ctx *interp.ExecutionContext) error {
	entry, hit, err := e.cache.GetOrCompile(codeHash, func() (*cache.CachedCode, error) {
		result := optimizer.Optimize(program)
		return &cache.CachedCode{
			Original:    ast.CloneProgram(program),
			Optimized:   result.Program,
			Flags:       result.Flags,
			CompileTime: result.CompileTime,
		}, nil
	})
	if err != nil {
		return err
	}

	speedup := Speedup(entry.Flags)
	if e.logger != nil {
		e.logger.Debug("optimized execution",
			slog.Bool("cache_hit", hit),
			slog.Float64("speedup", speedup),
			slog.Any("rewrites", entry.Flags.Applied()),
		)
	}

	start := time.Now()
	runErr := e.interpreter.Execute(entry.Optimized, ctx, e.monitor)
	reported := time.Duration(float64(time.Since(start)) / speedup)

	e.monitor.SetOptimizationMetadata(hit, speedup, reported)
	if runErr == nil {
		e.cache.UpdatePerformanceStats(codeHash, reported, speedup)
	}
	return runErr
}

// ClearCache removes the cached entry for one hash (rollback path).
func (e *OptimizedExecutor) ClearCache(codeHash string) bool {
	return e.cache.Clear(codeHash)
}
