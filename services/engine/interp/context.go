// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interp

import "strconv"

// ExecutionMode tags which execution tier a run uses.
type ExecutionMode string

// Execution modes.
const (
	// ModeSandboxed is the default fully-guarded interpreter tier.
	ModeSandboxed ExecutionMode = "sandboxed"

	// ModeOptimized is the trusted tier running optimizer-rewritten trees.
	ModeOptimized ExecutionMode = "optimized"
)

// ExecutionContext holds all mutable state of one program run.
//
// Description:
//
//	Owns the variable bindings, the append-only output log, the mode
//	tag, and the code hash the run was created for. A context is
//	created fresh per run and never reused: no context outlives one
//	pipeline execute call. This isolation is what makes rollback
//	snapshots and trust records attributable to exactly one run.
//
// Thread Safety: NOT safe for concurrent use. One run owns one context.
type ExecutionContext struct {
	variables map[string]int64
	output    []string

	// Mode is the execution tier this context was created for.
	Mode ExecutionMode

	// CodeHash identifies the program this context belongs to.
	CodeHash string
}

// NewContext creates a fresh execution context for one run.
func NewContext(mode ExecutionMode, codeHash string) *ExecutionContext {
	return &ExecutionContext{
		variables: make(map[string]int64),
		Mode:      mode,
		CodeHash:  codeHash,
	}
}

// GetVariable returns the value of a variable and whether it is defined.
func (c *ExecutionContext) GetVariable(name string) (int64, bool) {
	v, ok := c.variables[name]
	return v, ok
}

// SetVariable binds a value to a variable name.
func (c *ExecutionContext) SetVariable(name string, value int64) {
	c.variables[name] = value
}

// IsDefined reports whether a variable is bound in this context.
func (c *ExecutionContext) IsDefined(name string) bool {
	_, ok := c.variables[name]
	return ok
}

// VariableCount returns the number of distinct bound variables.
func (c *ExecutionContext) VariableCount() int {
	return len(c.variables)
}

// Variables returns a copy of the current bindings.
//
// The copy is safe to retain in audit records; later mutation of the
// context does not affect it.
func (c *ExecutionContext) Variables() map[string]int64 {
	snapshot := make(map[string]int64, len(c.variables))
	for name, value := range c.variables {
		snapshot[name] = value
	}
	return snapshot
}

// AddOutput appends one line to the output log.
func (c *ExecutionContext) AddOutput(text string) {
	c.output = append(c.output, text)
}

// AddOutputInt appends the decimal rendering of a value to the output log.
func (c *ExecutionContext) AddOutputInt(value int64) {
	c.AddOutput(strconv.FormatInt(value, 10))
}

// Output returns a copy of the output log in emission order.
func (c *ExecutionContext) Output() []string {
	out := make([]string, len(c.output))
	copy(out, c.output)
	return out
}
