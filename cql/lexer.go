package cql

import (
	"errors"
	"unicode"
)

type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF
	TOKEN_IDENT
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_EQ
	TOKEN_NEQ
	TOKEN_LT
	TOKEN_LTE
	TOKEN_GT
	TOKEN_GTE
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
)

func tokenName(i TokenType) string {
	switch i {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_IDENT:
		return "IDENT"
	case TOKEN_NUMBER:
		return "NUMBER"
	case TOKEN_STRING:
		return "STRING"
	case TOKEN_EQ:
		return "EQ"
	case TOKEN_NEQ:
		return "NEQ"
	case TOKEN_LT:
		return "LT"
	case TOKEN_LTE:
		return "LTE"
	case TOKEN_GT:
		return "GT"
	case TOKEN_GTE:
		return "GTE"
	case TOKEN_LPAREN:
		return "LPAREN"
	case TOKEN_RPAREN:
		return "RPAREN"
	case TOKEN_COMMA:
		return "COMMA"
	}
	return "ILLEGAL"
}

type Token struct {
	Type    TokenType
	Literal string
}

type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// Identifiers cover property paths like properties.eo:cloud_cover.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' || l.ch == ':' {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '-' || l.ch == '+' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

// Strings are single-quoted, with '' as the escape for a literal quote.
func (l *Lexer) readString() (string, error) {
	var out []byte
	for {
		l.readChar()
		if l.ch == 0 {
			return "", errors.New("unterminated string")
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				l.readChar()
				out = append(out, '\'')
				continue
			}
			break
		}
		out = append(out, l.ch)
	}
	return string(out), nil
}

func (l *Lexer) NextToken() Token {
	var tok Token

	l.skipWhitespace()

	switch l.ch {
	case '=':
		tok = Token{TOKEN_EQ, "="}
	case '<':
		switch l.peekChar() {
		case '>':
			l.readChar()
			tok = Token{TOKEN_NEQ, "<>"}
		case '=':
			l.readChar()
			tok = Token{TOKEN_LTE, "<="}
		default:
			tok = Token{TOKEN_LT, "<"}
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{TOKEN_GTE, ">="}
		} else {
			tok = Token{TOKEN_GT, ">"}
		}
	case '(':
		tok = Token{TOKEN_LPAREN, "("}
	case ')':
		tok = Token{TOKEN_RPAREN, ")"}
	case ',':
		tok = Token{TOKEN_COMMA, ","}
	case '\'':
		if str, err := l.readString(); err == nil {
			tok = Token{TOKEN_STRING, str}
		} else {
			tok = Token{TOKEN_ILLEGAL, ""}
		}
	case 0:
		tok = Token{TOKEN_EOF, ""}
	default:
		if isLetter(l.ch) || l.ch == '_' {
			tok.Literal = l.readIdentifier()
			tok.Type = TOKEN_IDENT
			return tok
		} else if isDigit(l.ch) || ((l.ch == '-' || l.ch == '+') && isDigit(l.peekChar())) {
			tok.Literal = l.readNumber()
			tok.Type = TOKEN_NUMBER
			return tok
		} else {
			tok = Token{TOKEN_ILLEGAL, string(l.ch)}
		}
	}

	l.readChar()
	return tok
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return unicode.IsDigit(rune(ch))
}
