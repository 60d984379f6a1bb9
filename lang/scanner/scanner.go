// Package scanner implements a pull-based lexer that turns source bytes into
// a stream of tokens. It keeps no lookahead beyond a single character plus a
// one-character peek, matching the discipline of the language's single-pass
// compiler. A single source buffer is scanned per Interpret call; there is
// no multi-file position set.
package scanner

import (
	"strings"

	"github.com/Gawesomer/lox/lang/token"
)

// Token is one scanned lexeme: its kind, the literal text it covers, and the
// 1-based source line it started on.
type Token struct {
	Kind token.Token
	Text string
	Line int
}

// Scanner tokenizes a single source buffer.
type Scanner struct {
	src     string
	start   int
	current int
	line    int
}

// New returns a Scanner ready to tokenize src.
func New(src string) *Scanner {
	return &Scanner{src: src, line: 1}
}

func (s *Scanner) isAtEnd() bool { return s.current >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.src[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) makeToken(kind token.Token) Token {
	return Token{Kind: kind, Text: s.src[s.start:s.current], Line: s.line}
}

// errorToken reports a scan error as a distinct token kind whose Text carries
// the message.
func (s *Scanner) errorToken(msg string) Token {
	return Token{Kind: token.ILLEGAL, Text: msg, Line: s.line}
}

// skipWhitespace consumes spaces, tabs, newlines, and both comment forms.
// Returns true with an ILLEGAL token if a block comment runs off the end of
// the source unterminated; otherwise returns false and a zero Token.
func (s *Scanner) skipWhitespace() (Token, bool) {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				for s.peek() != '\n' && !s.isAtEnd() {
					s.advance()
				}
			} else if s.peekNext() == '*' {
				s.advance()
				s.advance()
				depth := 1
				for depth > 0 {
					if s.isAtEnd() {
						return s.errorToken("unterminated block comment"), true
					}
					if s.peek() == '\n' {
						s.line++
					}
					if s.peek() == '/' && s.peekNext() == '*' {
						s.advance()
						s.advance()
						depth++
						continue
					}
					if s.peek() == '*' && s.peekNext() == '/' {
						s.advance()
						s.advance()
						depth--
						continue
					}
					s.advance()
				}
			} else {
				return Token{}, false
			}
		default:
			return Token{}, false
		}
	}
}

// Scan returns the next token in the source, advancing the cursor.
func (s *Scanner) Scan() Token {
	if tok, stop := s.skipWhitespace(); stop {
		return tok
	}
	s.start = s.current

	if s.isAtEnd() {
		return s.makeToken(token.EOF)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(token.LPAREN)
	case ')':
		return s.makeToken(token.RPAREN)
	case '{':
		return s.makeToken(token.LBRACE)
	case '}':
		return s.makeToken(token.RBRACE)
	case ';':
		return s.makeToken(token.SEMI)
	case ':':
		return s.makeToken(token.COLON)
	case ',':
		return s.makeToken(token.COMMA)
	case '.':
		return s.makeToken(token.DOT)
	case '-':
		return s.makeToken(token.MINUS)
	case '+':
		return s.makeToken(token.PLUS)
	case '/':
		return s.makeToken(token.SLASH)
	case '*':
		return s.makeToken(token.STAR)
	case '?':
		return s.makeToken(token.QMARK)
	case '!':
		if s.match('=') {
			return s.makeToken(token.BANG_EQ)
		}
		return s.makeToken(token.BANG)
	case '=':
		if s.match('=') {
			return s.makeToken(token.EQ_EQ)
		}
		return s.makeToken(token.EQ)
	case '<':
		if s.match('=') {
			return s.makeToken(token.LT_EQ)
		}
		return s.makeToken(token.LT)
	case '>':
		if s.match('=') {
			return s.makeToken(token.GT_EQ)
		}
		return s.makeToken(token.GT)
	case '"':
		return s.string()
	}

	return s.errorToken("unexpected character")
}

func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	text := s.src[s.start:s.current]
	return s.makeToken(token.LookupIdent(text))
}

func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.makeToken(token.NUMBER)
}

// string scans a "-delimited literal. No escape processing is performed.
func (s *Scanner) string() Token {
	var sb strings.Builder
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		sb.WriteByte(s.advance())
	}
	if s.isAtEnd() {
		return s.errorToken("unterminated string")
	}
	s.advance() // closing quote
	tok := s.makeToken(token.STRING)
	tok.Text = sb.String()
	return tok
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
