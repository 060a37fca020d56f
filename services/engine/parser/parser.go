// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package parser builds AEGIS syntax trees from token streams.
//
// Grammar (statements are newline-separated):
//
//	program    := { statement NEWLINE } EOF
//	statement  := assignment | print
//	assignment := IDENTIFIER "=" expression
//	print      := "print" IDENTIFIER
//	expression := term { ("+" | "-") term }
//	term       := factor { ("*" | "/") factor }
//	factor     := INTEGER | IDENTIFIER
//
// Operator precedence (* and / bind tighter than + and -) is encoded in
// the recursive-descent structure; downstream stages never re-derive it.
package parser

import (
	"strconv"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/ast"
	"github.com/PathanWasim/AEGIS/services/engine/lexer"
)

// Parse builds a program from a token stream.
//
// Description:
//
//	Recursive-descent parse over the grammar above. Blank lines are
//	skipped. Stops at the first syntax error.
//
// Inputs:
//
//	tokens - Token stream from lexer.Tokenize, terminated by EOF.
//
// Outputs:
//
//	ast.Program - The parsed statement sequence.
//	error - *aegiserr.SyntaxError on the first grammar violation.
func Parse(tokens []lexer.Token) (ast.Program, error) {
	p := &parser{tokens: tokens}
	return p.parseProgram()
}

// ParseSource tokenizes and parses source text in one step.
func ParseSource(source string) (ast.Program, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) parseProgram() (ast.Program, error) {
	var program ast.Program
	for {
		for p.peek().Type == lexer.TokenNewline {
			p.advance()
		}
		if p.peek().Type == lexer.TokenEOF {
			return program, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program = append(program, stmt)

		// Statements end at a newline or EOF.
		switch p.peek().Type {
		case lexer.TokenNewline:
			p.advance()
		case lexer.TokenEOF:
		default:
			return nil, p.errorAt(p.peek(), "expected end of statement")
		}
	}
}

func (p *parser) parseStatement() (ast.Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenPrint:
		return p.parsePrint()
	case lexer.TokenIdentifier:
		return p.parseAssignment()
	default:
		return nil, p.errorAt(tok, "expected assignment or print statement")
	}
}

func (p *parser) parsePrint() (ast.Stmt, error) {
	kw := p.advance()
	ident := p.peek()
	if ident.Type != lexer.TokenIdentifier {
		return nil, p.errorAt(ident, "expected identifier after print")
	}
	p.advance()
	return &ast.Print{
		Identifier: ident.Value,
		Pos:        ast.Pos{Line: kw.Line, Column: kw.Column},
	}, nil
}

func (p *parser) parseAssignment() (ast.Stmt, error) {
	ident := p.advance()
	if eq := p.peek(); eq.Type != lexer.TokenAssign {
		return nil, p.errorAt(eq, "expected '=' after identifier")
	}
	p.advance()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Assignment{
		Identifier: ident.Value,
		Value:      value,
		Pos:        ast.Pos{Line: ident.Line, Column: ident.Column},
	}, nil
}

func (p *parser) parseExpression() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var op ast.Operator
		switch tok.Type {
		case lexer.TokenPlus:
			op = ast.OpAdd
		case lexer.TokenMinus:
			op = ast.OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{
			Left:     left,
			Operator: op,
			Right:    right,
			Pos:      ast.Pos{Line: tok.Line, Column: tok.Column},
		}
	}
}

func (p *parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var op ast.Operator
		switch tok.Type {
		case lexer.TokenMultiply:
			op = ast.OpMul
		case lexer.TokenDivide:
			op = ast.OpDiv
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{
			Left:     left,
			Operator: op,
			Right:    right,
			Pos:      ast.Pos{Line: tok.Line, Column: tok.Column},
		}
	}
}

func (p *parser) parseFactor() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenInteger:
		p.advance()
		value, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorAt(tok, "integer literal out of range")
		}
		return &ast.IntegerLiteral{
			Value: value,
			Pos:   ast.Pos{Line: tok.Line, Column: tok.Column},
		}, nil
	case lexer.TokenIdentifier:
		p.advance()
		return &ast.Identifier{
			Name: tok.Value,
			Pos:  ast.Pos{Line: tok.Line, Column: tok.Column},
		}, nil
	default:
		return nil, p.errorAt(tok, "expected integer or identifier")
	}
}

func (p *parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		// The lexer always terminates the stream with EOF; this guards
		// against hand-built token slices in tests.
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() lexer.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) errorAt(tok lexer.Token, message string) error {
	value := tok.Value
	if tok.Type == lexer.TokenEOF {
		value = "EOF"
	}
	return &aegiserr.SyntaxError{
		Message: message,
		Line:    tok.Line,
		Column:  tok.Column,
		Token:   value,
	}
}
