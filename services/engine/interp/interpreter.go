// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interp implements the sandboxed tree-walking interpreter.
//
// The interpreter is the semantic ground truth of the engine: the
// optimized tier runs rewritten trees through the same evaluator, so
// any tree the optimizer produces must behave identically here.
package interp

import (
	"fmt"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/ast"
)

// Value range of the AEGIS integer type (32-bit signed).
const (
	MinValue int64 = -(1 << 31)
	MaxValue int64 = 1<<31 - 1
)

// DefaultInstructionCeiling is the interpreter's own hard cap on node
// evaluations per run. It is independent of the runtime monitor's
// violation threshold: the ceiling is the anti-infinite-loop guard of
// the sandbox itself, the monitor threshold is the security policy.
const DefaultInstructionCeiling = 10_000

// OpKind classifies the operations reported to execution hooks.
type OpKind string

// Operation kinds.
const (
	OpAssignment OpKind = "assignment"
	OpArithmetic OpKind = "arithmetic"
	OpPrint      OpKind = "print"
	OpLoad       OpKind = "load"
)

// Hooks receives per-operation telemetry during a run.
//
// The runtime monitor implements Hooks. A non-nil error returned from
// any hook aborts the run immediately; that is how monitor-detected
// violations short-circuit execution.
type Hooks interface {
	// RecordOperation is called once per evaluated node.
	RecordOperation(kind OpKind) error

	// RecordVariableAccess is called for each variable read or write.
	RecordVariableAccess(name string) error

	// RecordArithmetic is called with every arithmetic result before
	// the interpreter's own range check.
	RecordArithmetic(result int64) error
}

// Interpreter is the sandboxed tree-walking evaluator.
//
// Description:
//
//	Walks statements left to right against one ExecutionContext. Holds
//	no state across runs; all side effects flow through the context.
//
// Thread Safety:
//
//	Safe for concurrent use; per-run state lives on the stack and in
//	the caller-owned context.
type Interpreter struct {
	instructionCeiling int64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithInstructionCeiling overrides the per-run node evaluation cap.
func WithInstructionCeiling(n int64) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.instructionCeiling = n
		}
	}
}

// New creates an interpreter with the default instruction ceiling.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{instructionCeiling: DefaultInstructionCeiling}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// run carries the per-run evaluation state.
type run struct {
	ceiling int64
	ops     int64
	ctx     *ExecutionContext
	hooks   Hooks
}

// Execute runs a program against the given context.
//
// Description:
//
//	Evaluates statements in order. Aborts on the first runtime fault
//	or on the first violation reported by the hooks. Partial effects
//	(bindings, output) remain visible in the context for snapshots.
//
// Inputs:
//
//	program - Statements to execute. Assumed structurally valid.
//	ctx - The run's execution context. Must not be nil.
//	hooks - Telemetry hooks, may be nil.
//
// Outputs:
//
//	error - *aegiserr.RuntimeFault, or the violation error returned by
//	        a hook. Nil on success.
func (i *Interpreter) Execute(program ast.Program, ctx *ExecutionContext, hooks Hooks) error {
	r := &run{ceiling: i.instructionCeiling, ctx: ctx, hooks: hooks}
	for _, stmt := range program {
		if err := r.execStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) execStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.Assignment:
		value, err := r.evalExpr(n.Value)
		if err != nil {
			return err
		}
		if err := r.tick(OpAssignment); err != nil {
			return err
		}
		if value < MinValue || value > MaxValue {
			return r.fault(aegiserr.FaultIntegerOverflow,
				fmt.Sprintf("assignment to %s out of range: %d", n.Identifier, value))
		}
		if err := r.recordAccess(n.Identifier); err != nil {
			return err
		}
		r.ctx.SetVariable(n.Identifier, value)
		return nil

	case *ast.Print:
		if err := r.tick(OpPrint); err != nil {
			return err
		}
		if err := r.recordAccess(n.Identifier); err != nil {
			return err
		}
		value, ok := r.ctx.GetVariable(n.Identifier)
		if !ok {
			return r.fault(aegiserr.FaultUndefinedVariable,
				fmt.Sprintf("undefined variable: %s", n.Identifier))
		}
		r.ctx.AddOutputInt(value)
		return nil

	default:
		return r.fault(aegiserr.FaultTypeMismatch,
			fmt.Sprintf("unknown statement kind %T", s))
	}
}

func (r *run) evalExpr(e ast.Expr) (int64, error) {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		if err := r.tick(OpLoad); err != nil {
			return 0, err
		}
		if n.Value < MinValue || n.Value > MaxValue {
			return 0, r.fault(aegiserr.FaultIntegerOverflow,
				fmt.Sprintf("integer literal out of range: %d", n.Value))
		}
		return n.Value, nil

	case *ast.Identifier:
		if err := r.tick(OpLoad); err != nil {
			return 0, err
		}
		if err := r.recordAccess(n.Name); err != nil {
			return 0, err
		}
		value, ok := r.ctx.GetVariable(n.Name)
		if !ok {
			// Unreachable after static analysis, still checked.
			return 0, r.fault(aegiserr.FaultUndefinedVariable,
				fmt.Sprintf("undefined variable: %s", n.Name))
		}
		return value, nil

	case *ast.BinaryOp:
		left, err := r.evalExpr(n.Left)
		if err != nil {
			return 0, err
		}
		right, err := r.evalExpr(n.Right)
		if err != nil {
			return 0, err
		}
		if err := r.tick(OpArithmetic); err != nil {
			return 0, err
		}
		return r.applyOp(n.Operator, left, right)

	default:
		return 0, r.fault(aegiserr.FaultTypeMismatch,
			fmt.Sprintf("unknown expression kind %T", e))
	}
}

func (r *run) applyOp(op ast.Operator, left, right int64) (int64, error) {
	var result int64
	switch op {
	case ast.OpAdd:
		result = left + right
	case ast.OpSub:
		result = left - right
	case ast.OpMul:
		result = left * right
	case ast.OpDiv:
		if right == 0 {
			return 0, r.fault(aegiserr.FaultDivisionByZero, "division by zero")
		}
		result = floorDiv(left, right)
	default:
		return 0, r.fault(aegiserr.FaultTypeMismatch,
			fmt.Sprintf("unknown operator %q", op))
	}

	// Monitor sees the raw result first so an overflow can be raised as
	// a security violation (rollback-eligible) before the sandbox fault.
	if r.hooks != nil {
		if err := r.hooks.RecordArithmetic(result); err != nil {
			return 0, err
		}
	}
	if result < MinValue || result > MaxValue {
		return 0, r.fault(aegiserr.FaultIntegerOverflow,
			fmt.Sprintf("arithmetic overflow: %d %s %d = %d", left, op, right, result))
	}
	return result, nil
}

// tick counts one node evaluation against the run ceiling and reports
// the operation to the hooks.
func (r *run) tick(kind OpKind) error {
	r.ops++
	if r.ops > r.ceiling {
		return r.fault(aegiserr.FaultInstructionLimit,
			fmt.Sprintf("instruction ceiling exceeded: %d", r.ceiling))
	}
	if r.hooks != nil {
		return r.hooks.RecordOperation(kind)
	}
	return nil
}

func (r *run) recordAccess(name string) error {
	if r.hooks != nil {
		return r.hooks.RecordVariableAccess(name)
	}
	return nil
}

func (r *run) fault(kind aegiserr.FaultKind, message string) error {
	return &aegiserr.RuntimeFault{
		Kind:          kind,
		Message:       message,
		VariableState: r.ctx.Variables(),
	}
}

// floorDiv divides with rounding toward negative infinity, matching the
// reference semantics of the language.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
