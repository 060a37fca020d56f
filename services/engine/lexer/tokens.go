// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexer

import "fmt"

// TokenType enumerates the token kinds of the AEGIS language.
type TokenType int

// Token kinds.
const (
	TokenIdentifier TokenType = iota
	TokenInteger
	TokenAssign
	TokenPlus
	TokenMinus
	TokenMultiply
	TokenDivide
	TokenPrint
	TokenNewline
	TokenEOF
)

var tokenNames = map[TokenType]string{
	TokenIdentifier: "IDENTIFIER",
	TokenInteger:    "INTEGER",
	TokenAssign:     "ASSIGN",
	TokenPlus:       "PLUS",
	TokenMinus:      "MINUS",
	TokenMultiply:   "MULTIPLY",
	TokenDivide:     "DIVIDE",
	TokenPrint:      "PRINT",
	TokenNewline:    "NEWLINE",
	TokenEOF:        "EOF",
}

// String returns the token kind name.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical unit with its source position (1-based).
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// String renders the token for debugging and error messages.
func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, %d:%d)", t.Type, t.Value, t.Line, t.Column)
}
