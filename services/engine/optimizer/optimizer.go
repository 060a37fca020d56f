// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package optimizer rewrites syntax trees with semantics-preserving
// transformations.
//
// The equivalence contract is hard: an optimized tree must produce
// byte-identical output, identical final bindings, and identical error
// behavior when walked by the same interpreter. Rewrites that could
// erase a runtime fault (folding a division by literal zero, dropping a
// subtree that can overflow) are therefore skipped even when they would
// be profitable.
package optimizer

import (
	"time"

	"github.com/PathanWasim/AEGIS/services/engine/ast"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
)

// Flags records which rewrite classes fired during one optimization.
// The optimized executor derives the simulated speedup from these.
type Flags struct {
	ConstantFolding          bool `json:"constant_folding"`
	ConstantPropagation      bool `json:"constant_propagation"`
	DeadCodeElimination      bool `json:"dead_code_elimination"`
	ExpressionSimplification bool `json:"expression_simplification"`
}

// Any reports whether at least one rewrite class fired.
func (f Flags) Any() bool {
	return f.ConstantFolding || f.ConstantPropagation ||
		f.DeadCodeElimination || f.ExpressionSimplification
}

// Applied lists the names of the rewrite classes that fired.
func (f Flags) Applied() []string {
	var names []string
	if f.ConstantFolding {
		names = append(names, "constant_folding")
	}
	if f.ConstantPropagation {
		names = append(names, "constant_propagation")
	}
	if f.DeadCodeElimination {
		names = append(names, "dead_code_elimination")
	}
	if f.ExpressionSimplification {
		names = append(names, "expression_simplification")
	}
	return names
}

// Result is the output of one optimization.
type Result struct {
	Program     ast.Program
	Flags       Flags
	CompileTime time.Duration
}

// Optimize rewrites a program and reports which rewrites applied.
//
// Description:
//
//	Pure function over the input tree: the result is an independent
//	clone, the input is never mutated, and the same input always
//	produces the same output. Two passes: usage collection, then an
//	in-order rewrite applying constant folding, constant propagation,
//	algebraic identity simplification, and literal dead-store
//	elimination.
//
// Inputs:
//
//	program - The validated tree to rewrite.
//
// Outputs:
//
//	Result - Rewritten program, applied-rewrite flags, compile time.
func Optimize(program ast.Program) Result {
	start := time.Now()

	o := &optimization{
		reads:  collectReads(program),
		consts: make(map[string]int64),
	}

	var out ast.Program
	for i, stmt := range program {
		rewritten, keep := o.rewriteStmt(stmt, program[i+1:])
		if keep {
			out = append(out, rewritten)
		}
	}

	return Result{
		Program:     out,
		Flags:       o.flags,
		CompileTime: time.Since(start),
	}
}

type optimization struct {
	reads  map[string]int
	consts map[string]int64
	flags  Flags
}

// collectReads counts identifier reads per variable: expression uses
// plus print targets. Pass one of the optimizer.
func collectReads(program ast.Program) map[string]int {
	reads := make(map[string]int)
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Identifier:
			reads[n.Name]++
		case *ast.BinaryOp:
			walk(n.Left)
			walk(n.Right)
		}
	}
	for _, stmt := range program {
		switch n := stmt.(type) {
		case *ast.Assignment:
			walk(n.Value)
		case *ast.Print:
			reads[n.Identifier]++
		}
	}
	return reads
}

// rewriteStmt rewrites one statement; keep=false drops it entirely.
func (o *optimization) rewriteStmt(s ast.Stmt, rest ast.Program) (ast.Stmt, bool) {
	switch n := s.(type) {
	case *ast.Assignment:
		value := o.rewriteExpr(n.Value)

		// Track literal bindings for propagation into later statements.
		if lit, ok := value.(*ast.IntegerLiteral); ok {
			o.consts[n.Identifier] = lit.Value
		} else {
			delete(o.consts, n.Identifier)
		}

		// Dead-store elimination: the binding is overwritten later
		// without an intervening read, and the stored value cannot
		// fault, so dropping the store is unobservable.
		if effectFree(value) && o.isDeadStore(n.Identifier, rest) {
			o.flags.DeadCodeElimination = true
			return nil, false
		}

		return &ast.Assignment{Identifier: n.Identifier, Value: value, Pos: n.Pos}, true

	case *ast.Print:
		c := *n
		return &c, true

	default:
		return ast.CloneStmt(s), true
	}
}

// isDeadStore reports whether a later assignment to name happens before
// any read of name in the remaining statements.
func (o *optimization) isDeadStore(name string, rest ast.Program) bool {
	if o.reads[name] == 0 {
		// Never read anywhere in the program: dead as soon as any later
		// store overwrites it.
		for _, stmt := range rest {
			if a, ok := stmt.(*ast.Assignment); ok && a.Identifier == name {
				return true
			}
		}
		return false
	}
	for _, stmt := range rest {
		switch n := stmt.(type) {
		case *ast.Assignment:
			if readsVariable(n.Value, name) {
				return false
			}
			if n.Identifier == name {
				return true
			}
		case *ast.Print:
			if n.Identifier == name {
				return false
			}
		}
	}
	return false
}

func readsVariable(e ast.Expr, name string) bool {
	switch n := e.(type) {
	case *ast.Identifier:
		return n.Name == name
	case *ast.BinaryOp:
		return readsVariable(n.Left, name) || readsVariable(n.Right, name)
	}
	return false
}

// rewriteExpr rewrites one expression bottom-up.
func (o *optimization) rewriteExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		c := *n
		return &c

	case *ast.Identifier:
		if value, ok := o.consts[n.Name]; ok {
			o.flags.ConstantPropagation = true
			return &ast.IntegerLiteral{Value: value, Pos: n.Pos}
		}
		c := *n
		return &c

	case *ast.BinaryOp:
		left := o.rewriteExpr(n.Left)
		right := o.rewriteExpr(n.Right)

		if folded, ok := o.fold(n.Operator, left, right, n.Pos); ok {
			return folded
		}
		if simplified, ok := o.simplify(n.Operator, left, right); ok {
			return simplified
		}
		return &ast.BinaryOp{Left: left, Operator: n.Operator, Right: right, Pos: n.Pos}

	default:
		return ast.CloneExpr(e)
	}
}

// fold evaluates a binary op over two literals at compile time.
//
// Division by a literal zero is never folded: the interpreter must
// still raise DivisionByZero at run time. Results or operands outside
// the 32-bit range are left unfolded for the same reason: the runtime
// overflow fault is observable behavior.
func (o *optimization) fold(op ast.Operator, left, right ast.Expr, pos ast.Pos) (ast.Expr, bool) {
	l, lok := left.(*ast.IntegerLiteral)
	r, rok := right.(*ast.IntegerLiteral)
	if !lok || !rok {
		return nil, false
	}
	if !inRange(l.Value) || !inRange(r.Value) {
		return nil, false
	}

	var result int64
	switch op {
	case ast.OpAdd:
		result = l.Value + r.Value
	case ast.OpSub:
		result = l.Value - r.Value
	case ast.OpMul:
		result = l.Value * r.Value
	case ast.OpDiv:
		if r.Value == 0 {
			return nil, false
		}
		result = floorDiv(l.Value, r.Value)
	default:
		return nil, false
	}
	if !inRange(result) {
		return nil, false
	}

	o.flags.ConstantFolding = true
	return &ast.IntegerLiteral{Value: result, Pos: pos}, true
}

// simplify applies algebraic identities. Identities that discard the
// non-literal side (x*0, 0*x) only fire when that side is a leaf, since
// a discarded subtree could otherwise hide a runtime fault.
func (o *optimization) simplify(op ast.Operator, left, right ast.Expr) (ast.Expr, bool) {
	switch op {
	case ast.OpAdd:
		if isLiteral(left, 0) {
			return o.simplified(right), true
		}
		if isLiteral(right, 0) {
			return o.simplified(left), true
		}
	case ast.OpSub:
		if isLiteral(right, 0) {
			return o.simplified(left), true
		}
	case ast.OpMul:
		if isLiteral(right, 1) {
			return o.simplified(left), true
		}
		if isLiteral(left, 1) {
			return o.simplified(right), true
		}
		if isLiteral(right, 0) && effectFree(left) {
			return o.simplified(&ast.IntegerLiteral{Value: 0, Pos: right.Position()}), true
		}
		if isLiteral(left, 0) && effectFree(right) {
			return o.simplified(&ast.IntegerLiteral{Value: 0, Pos: left.Position()}), true
		}
	case ast.OpDiv:
		if isLiteral(right, 1) {
			return o.simplified(left), true
		}
	}
	return nil, false
}

func (o *optimization) simplified(e ast.Expr) ast.Expr {
	o.flags.ExpressionSimplification = true
	return e
}

func isLiteral(e ast.Expr, value int64) bool {
	lit, ok := e.(*ast.IntegerLiteral)
	return ok && lit.Value == value
}

// effectFree reports whether evaluating an expression can never fault:
// only leaves qualify (a binary op may overflow or divide by zero).
func effectFree(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Identifier:
		return true
	case *ast.IntegerLiteral:
		return inRange(n.Value)
	}
	return false
}

func inRange(v int64) bool {
	return v >= interp.MinValue && v <= interp.MaxValue
}

// floorDiv matches the interpreter's division semantics so folding a
// division yields the exact runtime result.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
