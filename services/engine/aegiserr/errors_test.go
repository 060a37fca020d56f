// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aegiserr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"lexical", &LexicalError{Message: "invalid character", Line: 1, Column: 5}, CategoryLexical},
		{"syntax", &SyntaxError{Message: "expected value", Line: 2, Column: 1}, CategorySyntax},
		{"semantic", &SemanticError{Issues: []SemanticIssue{{Message: "undefined"}}}, CategorySemantic},
		{"runtime", &RuntimeFault{Kind: FaultDivisionByZero, Message: "division by zero"}, CategoryRuntime},
		{"wrapped runtime", fmt.Errorf("run failed: %w", &RuntimeFault{Kind: FaultIntegerOverflow}), CategoryRuntime},
		{"unknown", errors.New("disk on fire"), CategorySystem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategoryOf(tc.err))
		})
	}
}

func TestSemanticError_ListsEveryIssue(t *testing.T) {
	err := &SemanticError{Issues: []SemanticIssue{
		{Message: `undefined variable "x"`, Variable: "x", Line: 1},
		{Message: "division by literal zero", Line: 3},
	}}
	msg := err.Error()
	assert.Contains(t, msg, "2 violation(s)")
	assert.Contains(t, msg, `undefined variable "x" (line 1)`)
	assert.Contains(t, msg, "division by literal zero (line 3)")
}

func TestSyntaxError_IncludesTokenWhenPresent(t *testing.T) {
	withToken := &SyntaxError{Message: "expected identifier", Line: 1, Column: 7, Token: "="}
	assert.Contains(t, withToken.Error(), `near "="`)

	bare := &SyntaxError{Message: "unexpected end of statement", Line: 2, Column: 3}
	assert.NotContains(t, bare.Error(), "near")
}

func TestSystemError_Unwrap(t *testing.T) {
	cause := errors.New("badger: closed")
	err := &SystemError{Component: "trust store", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "trust store")
}
