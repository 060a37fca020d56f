// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitor attaches runtime telemetry and violation detection to
// an execution.
//
// One RuntimeMonitor instance instruments both execution tiers. It
// implements interp.Hooks; every recorded operation is followed by a
// violation check, and a detected violation aborts the run by returning
// itself as the hook error. In optimized mode a violation is also
// forwarded to the rollback sink before it propagates; in sandboxed
// mode there is nothing to roll back from, so it only aborts.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PathanWasim/AEGIS/services/engine/interp"
)

// Defaults for violation detection.
const (
	// DefaultViolationThreshold is the instruction count above which the
	// monitor raises an instruction_limit violation. Tunable separately
	// from the interpreter's own hard ceiling.
	DefaultViolationThreshold = 1_000

	// DefaultMemoryLimit is the maximum number of distinct variables a
	// run may touch before a memory_limit violation is raised.
	DefaultMemoryLimit = 100

	// historySize bounds the archived run history.
	historySize = 100
)

// RollbackSink receives violations detected during optimized execution.
//
// The pipeline injects an implementation backed by the rollback handler;
// the monitor never reaches into trust or cache state itself.
type RollbackSink interface {
	OnViolation(violations []*Violation, mode interp.ExecutionMode, codeHash string)
}

// RuntimeMonitor wraps executions with telemetry and violation detection.
//
// Thread Safety: safe for concurrent use, but a single monitor tracks
// one run at a time; the pipeline serializes Begin/End pairs per run.
type RuntimeMonitor struct {
	mu sync.Mutex

	violationThreshold int64
	memoryLimit        int
	sink               RollbackSink
	logger             *slog.Logger

	current *ExecutionMetrics
	ctx     *interp.ExecutionContext

	history []*ExecutionMetrics

	totalRuns       int64
	totalViolations int64
}

// MonitorOption configures a RuntimeMonitor.
type MonitorOption func(*RuntimeMonitor)

// WithViolationThreshold overrides the instruction violation threshold.
func WithViolationThreshold(n int64) MonitorOption {
	return func(m *RuntimeMonitor) {
		if n > 0 {
			m.violationThreshold = n
		}
	}
}

// WithMemoryLimit overrides the distinct-variable limit.
func WithMemoryLimit(n int) MonitorOption {
	return func(m *RuntimeMonitor) {
		if n > 0 {
			m.memoryLimit = n
		}
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *RuntimeMonitor) {
		m.logger = logger
	}
}

// NewRuntimeMonitor creates a monitor with default thresholds.
func NewRuntimeMonitor(opts ...MonitorOption) *RuntimeMonitor {
	m := &RuntimeMonitor{
		violationThreshold: DefaultViolationThreshold,
		memoryLimit:        DefaultMemoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetRollbackSink registers the sink notified on optimized-mode violations.
func (m *RuntimeMonitor) SetRollbackSink(sink RollbackSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// SetViolationThreshold changes the instruction violation threshold.
func (m *RuntimeMonitor) SetViolationThreshold(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.violationThreshold = n
	}
}

// ViolationThreshold returns the current instruction violation threshold.
func (m *RuntimeMonitor) ViolationThreshold() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violationThreshold
}

// Begin starts monitoring one run.
//
// Description:
//
//	Resets the current metrics for the context's mode and code hash and
//	retains the context so violation snapshots can capture its state.
//	Must be paired with End.
//
// Inputs:
//
//	ctx - The run's execution context. Must not be nil.
func (m *RuntimeMonitor) Begin(ctx *interp.ExecutionContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = NewExecutionMetrics(ctx.Mode, ctx.CodeHash)
	m.ctx = ctx
	m.totalRuns++
}

// End finishes the current run and archives its metrics.
//
// Description:
//
//	Stamps the execution time if the executor has not already set it,
//	appends the metrics to the bounded history, and clears the current
//	run state.
//
// Outputs:
//
//	*ExecutionMetrics - The archived metrics for the completed run.
func (m *RuntimeMonitor) End() *ExecutionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.current
	if metrics == nil {
		return nil
	}
	if metrics.ExecutionTime == 0 {
		metrics.ExecutionTime = time.Since(metrics.StartedAt)
	}

	m.history = append(m.history, metrics)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}

	m.current = nil
	m.ctx = nil
	return metrics
}

// SetOptimizationMetadata stamps the current run with the optimized
// executor's reporting fields.
//
// The execution time recorded here is the measured wall time divided by
// the simulated speedup; End will not overwrite it.
func (m *RuntimeMonitor) SetOptimizationMetadata(cacheHit bool, speedup float64, executionTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current.OptimizationApplied = true
	m.current.CacheHit = cacheHit
	m.current.SpeedupFactor = speedup
	m.current.ExecutionTime = executionTime
}

// Current returns the in-progress run metrics, or nil outside a run.
func (m *RuntimeMonitor) Current() *ExecutionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// RecordOperation implements interp.Hooks.
func (m *RuntimeMonitor) RecordOperation(kind interp.OpKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}

	m.current.InstructionCount++
	switch kind {
	case interp.OpAssignment:
		m.current.AssignmentOps++
	case interp.OpArithmetic:
		m.current.ArithmeticOps++
	case interp.OpPrint:
		m.current.PrintOps++
	}

	if m.current.InstructionCount > m.violationThreshold {
		return m.raiseLocked(ViolationInstructionLimit,
			fmt.Sprintf("instruction count %d exceeded threshold %d",
				m.current.InstructionCount, m.violationThreshold))
	}
	return nil
}

// RecordVariableAccess implements interp.Hooks.
func (m *RuntimeMonitor) RecordVariableAccess(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}

	m.current.VariablesAccessed[name] = struct{}{}
	if len(m.current.VariablesAccessed) > m.memoryLimit {
		return m.raiseLocked(ViolationMemoryLimit,
			fmt.Sprintf("variable count %d exceeded limit %d",
				len(m.current.VariablesAccessed), m.memoryLimit))
	}
	return nil
}

// RecordArithmetic implements interp.Hooks.
func (m *RuntimeMonitor) RecordArithmetic(result int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}

	if result < interp.MinValue || result > interp.MaxValue {
		return m.raiseLocked(ViolationArithmeticOverflow,
			fmt.Sprintf("arithmetic result %d outside 32-bit signed range", result))
	}
	return nil
}

// raiseLocked records a violation, notifies the rollback sink when the
// run is in optimized mode, and returns the violation as the abort error.
// Caller must hold m.mu.
func (m *RuntimeMonitor) raiseLocked(kind ViolationKind, message string) error {
	v := &Violation{
		Kind:      kind,
		Message:   message,
		Context:   SnapshotContext(m.ctx),
		Timestamp: time.Now(),
	}
	m.current.Violations = append(m.current.Violations, v)
	m.totalViolations++

	if m.logger != nil {
		m.logger.Warn("security violation detected",
			slog.String("kind", string(kind)),
			slog.String("mode", string(m.current.Mode)),
			slog.String("code_hash", m.current.CodeHash),
		)
	}

	if m.current.Mode == interp.ModeOptimized && m.sink != nil {
		// Release the lock around the sink call: the rollback handler
		// calls back into trust and cache components that must be free
		// to query the monitor.
		violations := append([]*Violation(nil), m.current.Violations...)
		mode, hash := m.current.Mode, m.current.CodeHash
		sink := m.sink
		m.mu.Unlock()
		sink.OnViolation(violations, mode, hash)
		m.mu.Lock()
	}
	return v
}

// History returns a copy of the archived run metrics, oldest first.
func (m *RuntimeMonitor) History() []*ExecutionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ExecutionMetrics, len(m.history))
	copy(out, m.history)
	return out
}

// Aggregate summarizes the archived history.
func (m *RuntimeMonitor) Aggregate() AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := AggregateMetrics{
		Runs:            len(m.history),
		TotalViolations: int(m.totalViolations),
	}
	if len(m.history) == 0 {
		return agg
	}

	var instructions int64
	var elapsed time.Duration
	var violated int
	for _, h := range m.history {
		instructions += h.InstructionCount
		elapsed += h.ExecutionTime
		if h.HadViolations() {
			violated++
		}
	}
	agg.AvgInstructionCount = float64(instructions) / float64(len(m.history))
	agg.AvgExecutionTime = elapsed / time.Duration(len(m.history))
	agg.ViolationRate = float64(violated) / float64(len(m.history))
	return agg
}
