// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"time"

	"github.com/PathanWasim/AEGIS/services/engine/interp"
)

// ExecutionMetrics accumulates telemetry over one run.
//
// Built incrementally by the monitor's hooks, then archived into the
// bounded run history when the run ends.
type ExecutionMetrics struct {
	// CodeHash identifies the program this run executed.
	CodeHash string `json:"code_hash"`

	// Mode is the execution tier of the run.
	Mode interp.ExecutionMode `json:"execution_mode"`

	// InstructionCount is the number of operations recorded.
	InstructionCount int64 `json:"instruction_count"`

	// Per-kind operation counters.
	AssignmentOps int64 `json:"assignment_ops"`
	ArithmeticOps int64 `json:"arithmetic_ops"`
	PrintOps      int64 `json:"print_ops"`

	// VariablesAccessed is the set of variable names touched.
	VariablesAccessed map[string]struct{} `json:"-"`

	// Violations holds every violation detected during the run.
	Violations []*Violation `json:"violations"`

	// ExecutionTime is the duration of the run. For optimized runs this
	// is the measured wall time divided by the simulated speedup.
	ExecutionTime time.Duration `json:"execution_time"`

	// Optimization metadata, set only by the optimized executor.
	OptimizationApplied bool    `json:"optimization_applied"`
	CacheHit            bool    `json:"cache_hit"`
	SpeedupFactor       float64 `json:"speedup_factor"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}

// NewExecutionMetrics creates empty metrics for one run.
func NewExecutionMetrics(mode interp.ExecutionMode, codeHash string) *ExecutionMetrics {
	return &ExecutionMetrics{
		CodeHash:          codeHash,
		Mode:              mode,
		VariablesAccessed: make(map[string]struct{}),
		StartedAt:         time.Now(),
	}
}

// HadViolations reports whether any violation was detected this run.
func (m *ExecutionMetrics) HadViolations() bool {
	return len(m.Violations) > 0
}

// VariableCount returns the number of distinct variables touched.
func (m *ExecutionMetrics) VariableCount() int {
	return len(m.VariablesAccessed)
}

// AggregateMetrics summarizes the archived run history.
type AggregateMetrics struct {
	Runs                int           `json:"runs"`
	TotalViolations     int           `json:"total_violations"`
	AvgInstructionCount float64       `json:"avg_instruction_count"`
	AvgExecutionTime    time.Duration `json:"avg_execution_time"`
	ViolationRate       float64       `json:"violation_rate"`
}
