// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the abstract syntax tree for AEGIS programs.
//
// The node set is a closed sum type: every statement and expression kind
// implements the Stmt or Expr marker interface, and consumers dispatch
// with exhaustive type switches. Trees are treated as immutable once
// built; stages that need to rewrite a tree (the optimizer) work on an
// independent clone, never on aliased nodes.
package ast

import "fmt"

// Pos is a source position, 1-based.
type Pos struct {
	Line   int
	Column int
}

// String renders the position as "line:column".
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every AST node kind.
type Node interface {
	// Pos returns the source position of the node.
	Position() Pos
	node()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmt()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	expr()
}

// Program is an ordered sequence of statements.
type Program []Stmt

// Operator is a binary arithmetic operator.
type Operator string

// Supported operators.
const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
	OpDiv Operator = "/"
)

// Valid reports whether the operator is one of the four supported kinds.
func (op Operator) Valid() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// Assignment binds the value of an expression to a variable:
//
//	identifier = expression
type Assignment struct {
	Identifier string
	Value      Expr
	Pos        Pos
}

// BinaryOp applies an arithmetic operator to two operands:
//
//	left op right
type BinaryOp struct {
	Left     Expr
	Operator Operator
	Right    Expr
	Pos      Pos
}

// Identifier is a variable reference.
type Identifier struct {
	Name string
	Pos  Pos
}

// IntegerLiteral is an integer constant.
type IntegerLiteral struct {
	Value int64
	Pos   Pos
}

// Print writes the value of a variable to the program output:
//
//	print identifier
type Print struct {
	Identifier string
	Pos        Pos
}

func (n *Assignment) Position() Pos     { return n.Pos }
func (n *BinaryOp) Position() Pos       { return n.Pos }
func (n *Identifier) Position() Pos     { return n.Pos }
func (n *IntegerLiteral) Position() Pos { return n.Pos }
func (n *Print) Position() Pos          { return n.Pos }

func (*Assignment) node()     {}
func (*BinaryOp) node()       {}
func (*Identifier) node()     {}
func (*IntegerLiteral) node() {}
func (*Print) node()          {}

func (*Assignment) stmt() {}
func (*Print) stmt()      {}

func (*BinaryOp) expr()       {}
func (*Identifier) expr()     {}
func (*IntegerLiteral) expr() {}

// CloneExpr returns a deep copy of an expression tree.
//
// Description:
//
//	Produces an independent copy with no shared nodes. Used by the
//	optimizer so that the optimized tree never aliases the original.
//
// Inputs:
//
//	e - Expression to clone. Must not be nil.
//
// Outputs:
//
//	Expr - The cloned expression.
func CloneExpr(e Expr) Expr {
	switch n := e.(type) {
	case *IntegerLiteral:
		c := *n
		return &c
	case *Identifier:
		c := *n
		return &c
	case *BinaryOp:
		return &BinaryOp{
			Left:     CloneExpr(n.Left),
			Operator: n.Operator,
			Right:    CloneExpr(n.Right),
			Pos:      n.Pos,
		}
	default:
		panic(fmt.Sprintf("ast: unknown expression kind %T", e))
	}
}

// CloneStmt returns a deep copy of a statement.
func CloneStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *Assignment:
		return &Assignment{
			Identifier: n.Identifier,
			Value:      CloneExpr(n.Value),
			Pos:        n.Pos,
		}
	case *Print:
		c := *n
		return &c
	default:
		panic(fmt.Sprintf("ast: unknown statement kind %T", s))
	}
}

// CloneProgram returns a deep copy of a whole program.
func CloneProgram(p Program) Program {
	out := make(Program, len(p))
	for i, s := range p {
		out[i] = CloneStmt(s)
	}
	return out
}

// Depth returns the nesting depth of an expression tree.
//
// Leaves have depth 1; a binary operation is one deeper than its
// deepest operand. The static analyzer bounds this to keep recursive
// evaluation depth finite.
func Depth(e Expr) int {
	switch n := e.(type) {
	case *BinaryOp:
		l, r := Depth(n.Left), Depth(n.Right)
		if r > l {
			l = r
		}
		return l + 1
	default:
		return 1
	}
}
