package compiler

import "github.com/Gawesomer/lox/lang/token"

// precedence is the Pratt parser's precedence ladder, lowest to highest.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precTernary               // ?:
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

// parseFn is a prefix or infix parsing function bound to the Parser.
type parseFn func(p *Parser, canAssign bool)

// rule is one entry of the Pratt parser's rule table: an optional prefix
// parser, an optional infix parser, and the infix precedence used to decide
// whether parsePrecedence should keep consuming.
type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[token.Token]rule

// init builds the rule table at package initialization rather than in the
// var declaration, avoiding an initialization cycle with the parse functions
// in compiler.go, which consult the table through getRule.
func init() {
	rules = map[token.Token]rule{
		token.LPAREN:  {(*Parser).grouping, (*Parser).call, precCall},
		token.DOT:     {nil, (*Parser).dot, precCall},
		token.MINUS:   {(*Parser).unary, (*Parser).binary, precTerm},
		token.PLUS:    {nil, (*Parser).binary, precTerm},
		token.SLASH:   {nil, (*Parser).binary, precFactor},
		token.STAR:    {nil, (*Parser).binary, precFactor},
		token.QMARK:   {nil, (*Parser).ternary, precTernary},
		token.BANG:    {(*Parser).unary, nil, precNone},
		token.BANG_EQ: {nil, (*Parser).binary, precEquality},
		token.EQ_EQ:   {nil, (*Parser).binary, precEquality},
		token.GT:      {nil, (*Parser).binary, precComparison},
		token.GT_EQ:   {nil, (*Parser).binary, precComparison},
		token.LT:      {nil, (*Parser).binary, precComparison},
		token.LT_EQ:   {nil, (*Parser).binary, precComparison},
		token.IDENT:   {(*Parser).variable, nil, precNone},
		token.NUMBER:  {(*Parser).number, nil, precNone},
		token.STRING:  {(*Parser).strLiteral, nil, precNone},
		token.AND:     {nil, (*Parser).and_, precAnd},
		token.OR:      {nil, (*Parser).or_, precOr},
		token.FALSE:   {(*Parser).literal, nil, precNone},
		token.TRUE:    {(*Parser).literal, nil, precNone},
		token.NIL:     {(*Parser).literal, nil, precNone},
		token.THIS:    {(*Parser).this_, nil, precNone},
		token.SUPER:   {(*Parser).super_, nil, precNone},
	}
}

func getRule(t token.Token) rule {
	return rules[t]
}
