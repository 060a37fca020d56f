// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer implements the static semantic gate that runs before
// every execution.
//
// Analysis is a single forward pass over the statement list maintaining
// a defined-variables set in program order. All violations are collected
// and reported together rather than short-circuiting at the first. The
// pass re-runs on every execution, cache hit or not: a cached optimized
// tree never skips re-validation of the current parse.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/ast"
)

// DefaultMaxNestingDepth bounds expression tree depth so recursive
// evaluation depth stays finite.
const DefaultMaxNestingDepth = 10

// reservedWords may not be used as variable names.
var reservedWords = map[string]struct{}{
	"print": {},
}

// Report is the structured result of one analysis pass.
type Report struct {
	// DefinedVariables are names assigned anywhere in the program,
	// in first-definition order.
	DefinedVariables []string

	// UsedVariables are names read in expressions or print statements,
	// sorted.
	UsedVariables []string

	// UndefinedVariables are names read before definition, sorted.
	UndefinedVariables []string

	// Warnings are non-fatal findings (e.g. variable divisors that
	// cannot be proven non-zero at analysis time).
	Warnings []string
}

// Analyzer is the one-pass semantic checker.
//
// Thread Safety: safe for concurrent use; per-pass state is local.
type Analyzer struct {
	maxDepth int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxNestingDepth overrides the expression depth limit.
func WithMaxNestingDepth(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxDepth = n
		}
	}
}

// New creates an analyzer with the default nesting limit.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{maxDepth: DefaultMaxNestingDepth}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// pass carries the per-analysis state.
type pass struct {
	maxDepth     int
	defined      map[string]struct{}
	definedOrder []string
	used         map[string]struct{}
	undefined    map[string]struct{}
	warnings     []string
	issues       []aegiserr.SemanticIssue
}

// Analyze checks a program and returns the structured report.
//
// Description:
//
//	Walks statements in program order. The right-hand side of an
//	assignment is analyzed before its target joins the defined set, so
//	a self-referential first assignment (x = x + 1) is always an
//	undefined-variable error.
//
// Inputs:
//
//	program - The statement list to check.
//
// Outputs:
//
//	*Report - Always non-nil, populated even on failure.
//	error - *aegiserr.SemanticError aggregating every violation found,
//	        nil when the program passes.
func (a *Analyzer) Analyze(program ast.Program) (*Report, error) {
	p := &pass{
		maxDepth:  a.maxDepth,
		defined:   make(map[string]struct{}),
		used:      make(map[string]struct{}),
		undefined: make(map[string]struct{}),
	}

	for _, stmt := range program {
		p.checkStmt(stmt)
	}

	report := &Report{
		DefinedVariables:   p.definedOrder,
		UsedVariables:      sortedKeys(p.used),
		UndefinedVariables: sortedKeys(p.undefined),
		Warnings:           p.warnings,
	}
	if len(p.issues) > 0 {
		return report, &aegiserr.SemanticError{Issues: p.issues}
	}
	return report, nil
}

func (p *pass) checkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Assignment:
		// RHS first: the target is not defined for its own initializer.
		p.checkExpr(n.Value, n.Position().Line)
		p.checkIdentifierName(n.Identifier, n.Position().Line)
		if _, ok := p.defined[n.Identifier]; !ok {
			p.defined[n.Identifier] = struct{}{}
			p.definedOrder = append(p.definedOrder, n.Identifier)
		}

	case *ast.Print:
		p.checkIdentifierName(n.Identifier, n.Position().Line)
		p.checkRead(n.Identifier, n.Position().Line)

	default:
		p.addIssue(fmt.Sprintf("unknown statement kind %T", s), "", 0)
	}
}

func (p *pass) checkExpr(e ast.Expr, line int) {
	if depth := ast.Depth(e); depth > p.maxDepth {
		p.addIssue(fmt.Sprintf("expression nesting depth %d exceeds limit %d",
			depth, p.maxDepth), "", line)
	}
	p.checkExprInner(e, line)
}

func (p *pass) checkExprInner(e ast.Expr, line int) {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		// Always valid here; range enforcement is a runtime concern.

	case *ast.Identifier:
		p.checkRead(n.Name, line)

	case *ast.BinaryOp:
		p.checkExprInner(n.Left, line)
		p.checkExprInner(n.Right, line)
		if n.Operator == ast.OpDiv {
			p.checkDivisor(n.Right, line)
		}

	default:
		p.addIssue(fmt.Sprintf("unknown expression kind %T", e), "", line)
	}
}

// checkDivisor flags literal zero divisors as hard errors; a variable
// divisor cannot be proven at analysis time and is only a warning.
func (p *pass) checkDivisor(divisor ast.Expr, line int) {
	switch d := divisor.(type) {
	case *ast.IntegerLiteral:
		if d.Value == 0 {
			p.addIssue("division by zero", "", line)
		}
	case *ast.Identifier:
		p.warnings = append(p.warnings,
			fmt.Sprintf("divisor %q cannot be proven non-zero at line %d", d.Name, line))
	}
}

func (p *pass) checkRead(name string, line int) {
	p.used[name] = struct{}{}
	if _, ok := p.defined[name]; !ok {
		p.undefined[name] = struct{}{}
		p.addIssue(fmt.Sprintf("undefined variable: %s", name), name, line)
	}
}

func (p *pass) checkIdentifierName(name string, line int) {
	if !validIdentifier(name) {
		p.addIssue(fmt.Sprintf("invalid identifier: %q", name), name, line)
		return
	}
	if _, reserved := reservedWords[name]; reserved {
		p.addIssue(fmt.Sprintf("reserved word used as identifier: %q", name), name, line)
	}
}

func (p *pass) addIssue(message, variable string, line int) {
	p.issues = append(p.issues, aegiserr.SemanticIssue{
		Message:  message,
		Variable: variable,
		Line:     line,
	})
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, ch := range name {
		letter := ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
		digit := ch >= '0' && ch <= '9'
		if i == 0 && !letter {
			return false
		}
		if !letter && !digit {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
