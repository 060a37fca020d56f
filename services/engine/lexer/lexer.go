// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lexer tokenizes AEGIS source text.
//
// The language is line-oriented: newlines separate statements and are
// emitted as tokens; other whitespace is skipped. Supported lexemes are
// identifiers, integer literals, the four arithmetic operators, the
// assignment operator, and the print keyword.
package lexer

import (
	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
)

// Tokenize scans source text into a token stream terminated by EOF.
//
// Description:
//
//	Performs a single left-to-right scan tracking line and column for
//	error reporting. Stops at the first invalid character.
//
// Inputs:
//
//	source - Raw AEGIS source text.
//
// Outputs:
//
//	[]Token - The token stream, always ending with a TokenEOF.
//	error - *aegiserr.LexicalError on an unexpected character.
func Tokenize(source string) ([]Token, error) {
	s := &scanner{src: []rune(source), line: 1, column: 1}
	return s.run()
}

type scanner struct {
	src    []rune
	pos    int
	line   int
	column int
	tokens []Token
}

func (s *scanner) run() ([]Token, error) {
	for s.pos < len(s.src) {
		if err := s.scanToken(); err != nil {
			return nil, err
		}
	}
	s.emit(TokenEOF, "", s.line, s.column)
	return s.tokens, nil
}

func (s *scanner) scanToken() error {
	startLine, startCol := s.line, s.column
	ch := s.advance()

	switch {
	case ch == ' ' || ch == '\t' || ch == '\r':
		return nil
	case ch == '\n':
		s.emit(TokenNewline, "\n", startLine, startCol)
		s.line++
		s.column = 1
		return nil
	case ch == '=':
		s.emit(TokenAssign, "=", startLine, startCol)
		return nil
	case ch == '+':
		s.emit(TokenPlus, "+", startLine, startCol)
		return nil
	case ch == '-':
		s.emit(TokenMinus, "-", startLine, startCol)
		return nil
	case ch == '*':
		s.emit(TokenMultiply, "*", startLine, startCol)
		return nil
	case ch == '/':
		s.emit(TokenDivide, "/", startLine, startCol)
		return nil
	case isDigit(ch):
		s.scanNumber(ch, startLine, startCol)
		return nil
	case isAlpha(ch):
		s.scanIdentifier(ch, startLine, startCol)
		return nil
	default:
		return &aegiserr.LexicalError{
			Message: "unexpected character: " + string(ch),
			Line:    startLine,
			Column:  startCol,
		}
	}
}

func (s *scanner) scanNumber(first rune, line, col int) {
	value := []rune{first}
	for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
		value = append(value, s.advance())
	}
	s.emit(TokenInteger, string(value), line, col)
}

func (s *scanner) scanIdentifier(first rune, line, col int) {
	value := []rune{first}
	for s.pos < len(s.src) && isAlphaNumeric(s.src[s.pos]) {
		value = append(value, s.advance())
	}
	text := string(value)
	if text == "print" {
		s.emit(TokenPrint, text, line, col)
		return
	}
	s.emit(TokenIdentifier, text, line, col)
}

func (s *scanner) advance() rune {
	ch := s.src[s.pos]
	s.pos++
	s.column++
	return ch
}

func (s *scanner) emit(tt TokenType, value string, line, col int) {
	s.tokens = append(s.tokens, Token{Type: tt, Value: value, Line: line, Column: col})
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlphaNumeric(ch rune) bool {
	return isAlpha(ch) || isDigit(ch)
}
