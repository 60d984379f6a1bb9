package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/scanner"
	"github.com/Gawesomer/lox/lang/token"
)

func scanAll(src string) []scanner.Token {
	s := scanner.New(src)
	var toks []scanner.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF || tok.Kind == token.ILLEGAL {
			break
		}
	}
	return toks
}

func kinds(toks []scanner.Token) []token.Token {
	ks := make([]token.Token, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll("(){};,.+-*/? ! != = == < <= > >=")
	got := kinds(toks)
	want := []token.Token{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.SEMI,
		token.COMMA, token.DOT, token.PLUS, token.MINUS, token.STAR, token.SLASH,
		token.QMARK, token.BANG, token.BANG_EQ, token.EQ, token.EQ_EQ,
		token.LT, token.LT_EQ, token.GT, token.GT_EQ, token.EOF,
	}
	assert.Equal(t, want, got)
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll("class fun orbit")
	require.Len(t, toks, 4)
	assert.Equal(t, token.CLASS, toks[0].Kind)
	assert.Equal(t, token.FUN, toks[1].Kind)
	assert.Equal(t, token.IDENT, toks[2].Kind)
	assert.Equal(t, "orbit", toks[2].Text)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll("123 1.5 42.")
	require.Len(t, toks, 5)
	assert.Equal(t, "123", toks[0].Text)
	assert.Equal(t, "1.5", toks[1].Text)
	// a trailing dot with no following digit is not consumed as part of the
	// number literal.
	assert.Equal(t, "42", toks[2].Text)
}

func TestScanStringLiteral(t *testing.T) {
	toks := scanAll(`"hello world"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Text)
}

func TestScanUnterminatedStringIsIllegal(t *testing.T) {
	toks := scanAll(`"oops`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.ILLEGAL, toks[0].Kind)
	assert.Contains(t, toks[0].Text, "unterminated string")
}

func TestScanLineCommentsSkipped(t *testing.T) {
	toks := scanAll("// a comment\n123")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Kind)
}

func TestScanNestedBlockComments(t *testing.T) {
	toks := scanAll("/* outer /* inner */ still outer */ 7")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NUMBER, toks[0].Kind)
	assert.Equal(t, "7", toks[0].Text)
}

func TestScanUnterminatedBlockCommentIsIllegal(t *testing.T) {
	toks := scanAll("/* never closes")
	require.Len(t, toks, 1)
	assert.Equal(t, token.ILLEGAL, toks[0].Kind)
	assert.Contains(t, toks[0].Text, "unterminated block comment")
}

func TestScanLineNumbersAdvanceAcrossNewlines(t *testing.T) {
	s := scanner.New("1\n2\n\n3")
	var lines []int
	for {
		tok := s.Scan()
		if tok.Kind == token.EOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	assert.Equal(t, []int{1, 2, 4}, lines)
}
