// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aegiserr defines the error taxonomy shared by every engine stage.
//
// The taxonomy is a closed set of categories:
//
//   - Lexical / Syntax: the source never produced a valid tree.
//   - Semantic: static analysis rejected the program before execution.
//   - Runtime: a fault aborted the current run (undefined variable,
//     division by zero, overflow, instruction ceiling).
//   - Security: a monitor-detected violation; the only category that can
//     trigger rollback, and only in optimized mode.
//   - System: persistence or infrastructure failure; logged and recovered,
//     never surfaced as a program failure.
//
// Errors propagate as ordinary values through call signatures. Each run
// has a single early-return error channel; nothing unwinds.
package aegiserr

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies an error by the stage that produced it.
type Category string

// Error categories.
const (
	CategoryLexical  Category = "lexical"
	CategorySyntax   Category = "syntax"
	CategorySemantic Category = "semantic"
	CategoryRuntime  Category = "runtime"
	CategorySecurity Category = "security"
	CategorySystem   Category = "system"
)

// FaultKind identifies the specific runtime fault.
type FaultKind string

// Runtime fault kinds.
const (
	FaultUndefinedVariable FaultKind = "undefined_variable"
	FaultDivisionByZero    FaultKind = "division_by_zero"
	FaultIntegerOverflow   FaultKind = "integer_overflow"
	FaultInstructionLimit  FaultKind = "instruction_limit"
	FaultTypeMismatch      FaultKind = "type_mismatch"
)

// LexicalError reports an invalid character in the source text.
type LexicalError struct {
	Message string
	Line    int
	Column  int
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("lexical error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SyntaxError reports a token sequence the grammar does not accept.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
	Token   string
}

func (e *SyntaxError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("syntax error at %d:%d near %q: %s", e.Line, e.Column, e.Token, e.Message)
	}
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SemanticIssue is a single static-analysis finding.
type SemanticIssue struct {
	Message  string
	Variable string
	Line     int
}

func (i SemanticIssue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s (line %d)", i.Message, i.Line)
	}
	return i.Message
}

// SemanticError aggregates every violation found by static analysis.
//
// Analysis collects all findings instead of stopping at the first, so
// one failed run reports the complete set.
type SemanticError struct {
	Issues []SemanticIssue
}

func (e *SemanticError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "static analysis failed with %d violation(s):", len(e.Issues))
	for _, issue := range e.Issues {
		b.WriteString("\n  - ")
		b.WriteString(issue.String())
	}
	return b.String()
}

// RuntimeFault aborts the current run.
//
// VariableState carries a snapshot of the bindings at the moment of the
// fault for diagnostics; it is never mutated afterwards.
type RuntimeFault struct {
	Kind          FaultKind
	Message       string
	VariableState map[string]int64
}

func (e *RuntimeFault) Error() string {
	return fmt.Sprintf("runtime fault (%s): %s", e.Kind, e.Message)
}

// SystemError reports an infrastructure failure in a named component.
//
// System errors are logged and execution continues with best-effort
// in-memory state; they never fail a program run.
type SystemError struct {
	Component string
	Err       error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system error in %s: %v", e.Component, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// CategoryOf maps an error to its taxonomy category.
//
// Unrecognized errors map to CategorySystem.
func CategoryOf(err error) Category {
	var (
		lex *LexicalError
		syn *SyntaxError
		sem *SemanticError
		run *RuntimeFault
	)
	switch {
	case errors.As(err, &lex):
		return CategoryLexical
	case errors.As(err, &syn):
		return CategorySyntax
	case errors.As(err, &sem):
		return CategorySemantic
	case errors.As(err, &run):
		return CategoryRuntime
	default:
		return CategorySystem
	}
}
