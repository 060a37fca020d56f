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
	"fmt"
	"time"

	"github.com/PathanWasim/AEGIS/services/engine/interp"
)

// ViolationKind identifies the class of a security violation.
type ViolationKind string

// Violation kinds. These are distinct from ordinary runtime faults:
// violations are the only trigger for rollback, and only in optimized mode.
const (
	ViolationInstructionLimit   ViolationKind = "instruction_limit"
	ViolationMemoryLimit        ViolationKind = "memory_limit"
	ViolationArithmeticOverflow ViolationKind = "arithmetic_overflow"
)

// ContextSnapshot captures the observable state of a run at the moment
// a violation was detected. Snapshots are immutable once taken.
type ContextSnapshot struct {
	Variables map[string]int64     `json:"variables"`
	Output    []string             `json:"output"`
	Mode      interp.ExecutionMode `json:"execution_mode"`
	CodeHash  string               `json:"code_hash"`
}

// SnapshotContext copies the state of an execution context.
func SnapshotContext(ctx *interp.ExecutionContext) ContextSnapshot {
	if ctx == nil {
		return ContextSnapshot{}
	}
	return ContextSnapshot{
		Variables: ctx.Variables(),
		Output:    ctx.Output(),
		Mode:      ctx.Mode,
		CodeHash:  ctx.CodeHash,
	}
}

// Violation is a monitor-detected runtime anomaly.
//
// It implements error so a detection can abort the run through the
// interpreter's single error channel.
type Violation struct {
	Kind      ViolationKind   `json:"kind"`
	Message   string          `json:"message"`
	Context   ContextSnapshot `json:"context"`
	Timestamp time.Time       `json:"timestamp"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("security violation (%s): %s", v.Kind, v.Message)
}
