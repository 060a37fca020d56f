// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PathanWasim/AEGIS/services/engine/ast"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/parser"
)

func mustParse(t *testing.T, source string) ast.Program {
	t.Helper()
	program, err := parser.ParseSource(source)
	require.NoError(t, err)
	return program
}

func TestOptimize_ConstantFolding(t *testing.T) {
	result := Optimize(mustParse(t, "x = 2 + 3 * 4"))
	require.True(t, result.Flags.ConstantFolding)

	assign := result.Program[0].(*ast.Assignment)
	lit, ok := assign.Value.(*ast.IntegerLiteral)
	require.True(t, ok, "whole expression should fold to a literal")
	assert.Equal(t, int64(14), lit.Value)
}

func TestOptimize_FoldsFloorDivision(t *testing.T) {
	result := Optimize(mustParse(t, "x = 7 / 2"))
	assign := result.Program[0].(*ast.Assignment)
	assert.Equal(t, int64(3), assign.Value.(*ast.IntegerLiteral).Value)
}

// Division by a literal zero must survive optimization so the runtime
// fault still fires.
func TestOptimize_PreservesDivisionByZero(t *testing.T) {
	result := Optimize(mustParse(t, "x = 1 / 0"))
	assign := result.Program[0].(*ast.Assignment)
	_, isLit := assign.Value.(*ast.IntegerLiteral)
	assert.False(t, isLit, "1 / 0 must not fold")
	assert.False(t, result.Flags.ConstantFolding)
}

// Folding never hides a runtime overflow: out-of-range results stay
// unfolded.
func TestOptimize_PreservesOverflow(t *testing.T) {
	result := Optimize(mustParse(t, "x = 2147483647 + 1"))
	assign := result.Program[0].(*ast.Assignment)
	_, isLit := assign.Value.(*ast.IntegerLiteral)
	assert.False(t, isLit)
}

func TestOptimize_ConstantPropagation(t *testing.T) {
	result := Optimize(mustParse(t, "a = 5\nb = a + 1"))
	require.True(t, result.Flags.ConstantPropagation)
	require.True(t, result.Flags.ConstantFolding, "propagation feeds folding")

	b := result.Program[1].(*ast.Assignment)
	assert.Equal(t, int64(6), b.Value.(*ast.IntegerLiteral).Value)
}

// Reassignment with a non-literal value stops propagation of the old
// binding. The unfoldable overflow expression is the only way to make
// a binding non-constant in a language without inputs.
func TestOptimize_PropagationInvalidatedByReassignment(t *testing.T) {
	result := Optimize(mustParse(t, "a = 2147483647\na = a + 1\nc = a - 1"))
	require.Len(t, result.Program, 3)

	c := result.Program[2].(*ast.Assignment)
	_, isLit := c.Value.(*ast.IntegerLiteral)
	assert.False(t, isLit, "a is no longer a known constant after a = a + 1")
}

func TestOptimize_Simplification(t *testing.T) {
	// c stays non-constant because its overflow expression cannot fold,
	// so the identity rewrite is what reduces r to a bare identifier.
	cases := []struct {
		name string
		expr string
	}{
		{"x + 0", "c + 0"},
		{"0 + x", "0 + c"},
		{"x - 0", "c - 0"},
		{"x * 1", "c * 1"},
		{"1 * x", "1 * c"},
		{"x / 1", "c / 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := "a = 2147483647\nc = a + 1\nr = " + tc.expr + "\nprint r"
			result := Optimize(mustParse(t, source))
			require.True(t, result.Flags.ExpressionSimplification)

			r := result.Program[2].(*ast.Assignment)
			require.Equal(t, "r", r.Identifier)
			ident, ok := r.Value.(*ast.Identifier)
			require.True(t, ok, "expected identifier, got %T", r.Value)
			assert.Equal(t, "c", ident.Name)
		})
	}
}

// x * 0 collapses only when x is a leaf; a faultable subtree must keep
// evaluating.
func TestOptimize_MulZeroGuard(t *testing.T) {
	// Leaf identifier: collapses to 0 via simplification.
	result := Optimize(mustParse(t, "a = 2147483647\nb = a + 1\nr = b * 0\nprint r"))
	require.True(t, result.Flags.ExpressionSimplification)
	r := result.Program[2].(*ast.Assignment)
	lit, ok := r.Value.(*ast.IntegerLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(0), lit.Value)

	// Division subtree: must survive, it can fault at run time.
	result = Optimize(mustParse(t, "a = 1\nz = 0\nr = a / z * 0\nprint r"))
	r = result.Program[2].(*ast.Assignment)
	_, isLit := r.Value.(*ast.IntegerLiteral)
	assert.False(t, isLit, "a / z can fault and must not be discarded")
}

// A binding overwritten before any read is dropped; bindings that are
// read or printed are kept.
func TestOptimize_DeadStoreElimination(t *testing.T) {
	result := Optimize(mustParse(t, "x = 1\nx = 2\nprint x"))
	require.True(t, result.Flags.DeadCodeElimination)
	require.Len(t, result.Program, 2)

	assign := result.Program[0].(*ast.Assignment)
	assert.Equal(t, int64(2), assign.Value.(*ast.IntegerLiteral).Value)
}

func TestOptimize_DeadStoreKeptWhenRead(t *testing.T) {
	result := Optimize(mustParse(t, "x = 1\ny = x\nx = 2\nprint y"))
	assert.False(t, result.Flags.DeadCodeElimination)
	assert.Len(t, result.Program, 4)
}

// A never-read final binding is kept: dropping it would change the
// program's final variable state.
func TestOptimize_UnreadFinalStoreKept(t *testing.T) {
	result := Optimize(mustParse(t, "x = 1\ny = 2\nprint y"))
	assert.False(t, result.Flags.DeadCodeElimination)
	assert.Len(t, result.Program, 3)
}

func TestOptimize_InputNotMutated(t *testing.T) {
	program := mustParse(t, "a = 5\nb = a + 1\nprint b")
	Optimize(program)

	b := program[1].(*ast.Assignment)
	_, isBinary := b.Value.(*ast.BinaryOp)
	assert.True(t, isBinary, "input tree must remain unchanged")
}

func TestOptimize_LiteralBindingsPropagate(t *testing.T) {
	result := Optimize(mustParse(t, "a = 1\nb = 2\nc = a + b\nprint c"))
	assert.True(t, result.Flags.ConstantPropagation)
	assert.True(t, result.Flags.ConstantFolding)

	c := result.Program[2].(*ast.Assignment)
	assert.Equal(t, int64(3), c.Value.(*ast.IntegerLiteral).Value)
}

// Optimization preserves observable behavior: identical output and
// identical final bindings under the same interpreter.
func TestOptimize_EquivalenceProperty(t *testing.T) {
	sources := []string{
		"x = 10\nprint x",
		"a = 2 + 3\nb = a * 4\nprint b",
		"a = 1\nb = a + 0\nc = b * 1\nprint c",
		"x = 1\nx = 2\nx = 3\nprint x",
		"a = 7\nb = 2\nc = a / b\nprint c\nd = c - 10\nprint d",
		"a = 5\nb = a\nc = b\nprint a\nprint b\nprint c",
	}
	for _, source := range sources {
		program := mustParse(t, source)
		result := Optimize(program)

		original := interp.NewContext(interp.ModeSandboxed, "orig")
		require.NoError(t, interp.New().Execute(program, original, nil))

		optimized := interp.NewContext(interp.ModeOptimized, "opt")
		require.NoError(t, interp.New().Execute(result.Program, optimized, nil))

		assert.Equal(t, original.Output(), optimized.Output(), "output for:\n%s", source)
		assert.Equal(t, original.Variables(), optimized.Variables(), "bindings for:\n%s", source)
	}
}
