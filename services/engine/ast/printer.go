// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"strconv"
	"strings"
)

// Format renders a program back to source text, one statement per line.
//
// Used for diagnostics and for inspecting optimized trees. Binary
// operations are parenthesized to make evaluation order explicit, so
// the output is for humans, not for re-parsing.
func Format(p Program) string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatStmt(s))
	}
	return b.String()
}

// FormatStmt renders a single statement.
func FormatStmt(s Stmt) string {
	switch n := s.(type) {
	case *Assignment:
		return n.Identifier + " = " + FormatExpr(n.Value)
	case *Print:
		return "print " + n.Identifier
	default:
		return "<unknown stmt>"
	}
}

// FormatExpr renders an expression.
//
// Binary operations are parenthesized to make evaluation order explicit
// in diagnostics; leaf nodes render bare.
func FormatExpr(e Expr) string {
	switch n := e.(type) {
	case *IntegerLiteral:
		return strconv.FormatInt(n.Value, 10)
	case *Identifier:
		return n.Name
	case *BinaryOp:
		return "(" + FormatExpr(n.Left) + " " + string(n.Operator) + " " + FormatExpr(n.Right) + ")"
	default:
		return "<unknown expr>"
	}
}
