// Package compiler implements the language's single-pass compiler: a Pratt
// expression parser and recursive-descent statement parser that emit
// bytecode directly into a Chunk, with no intermediate AST. The parser is
// the compiler; the only state between reading a token and emitting its
// bytecode is the chain of per-function compiler records below.
package compiler

import (
	"fmt"
	goscanner "go/scanner"
	gotoken "go/token"
	"strconv"

	"github.com/dolthub/swiss"

	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/scanner"
	"github.com/Gawesomer/lox/lang/token"
	"github.com/Gawesomer/lox/lang/value"
)

// FuncType distinguishes the four shapes of compiled function bodies, each
// with slightly different slot-0 reservation and implicit-return rules.
type FuncType int

const (
	FuncScript FuncType = iota
	FuncFunction
	FuncMethod
	FuncInitializer
)

// local is one compile-time record of a declared local variable: its name,
// the scope depth it was declared at (-1 while its initializer is still
// being compiled, so a local cannot be read in its own initializer),
// whether it was declared `immut`, and whether any nested function closes
// over it (and so must be promoted to a heap Upvalue on scope exit instead
// of a plain stack pop).
type local struct {
	name       string
	depth      int
	immutable  bool
	isCaptured bool
}

// upvalueRef is one compile-time record of a captured variable: the index
// it resolves to (either a slot in the enclosing function's locals, or an
// index into the enclosing function's own upvalue array), and whether that
// index is local or itself an upvalue one level further out.
type upvalueRef struct {
	index     uint32
	isLocal   bool
	immutable bool
}

// breakable is one entry of the break/continue scoping stack: loops and
// switch statements both accept `break`, but only loops accept `continue`.
// For a for-loop whose body runs against a per-iteration shadow of the loop
// variable, loopVarSlot/shadowSlot record the two stack slots so `continue`
// can copy the shadow back before jumping to the increment.
type breakable struct {
	isLoop         bool
	continueTarget int
	scopeDepth     int
	breakJumps     []int
	loopVarSlot    int
	shadowSlot     int
}

// funcCompiler is the per-function compile state, chained through enclosing
// to model lexical nesting.
type funcCompiler struct {
	enclosing *funcCompiler

	function *object.Function
	funcType FuncType

	locals     []local
	scopeDepth int
	upvalues   []upvalueRef
	breakables []*breakable

	// Per-function constant dedup, so repeated literals in the same
	// function share one constant-pool slot.
	stringConsts *swiss.Map[string, uint32]
	numberConsts *swiss.Map[float64, uint32]
}

// classCompiler tracks `this`/`super` validity while compiling a class body,
// chained through enclosing to support nested class declarations.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// Parser drives the single-pass compile: it owns the token cursor, the chain
// of in-progress function compilers, and the shared heap/globals state.
type Parser struct {
	lex      *scanner.Scanner
	current  scanner.Token
	previous scanner.Token

	hadError  bool
	panicMode bool
	errs      goscanner.ErrorList

	heap    *gc.Heap
	globals *globals.Globals

	cur   *funcCompiler
	class *classCompiler
}

var _ gc.RootProvider = (*Parser)(nil)

// Compile compiles src into a top-level script Function. The returned error
// (when non-nil) is a go/scanner.ErrorList collecting every syntax error
// found during panic-mode recovery.
func Compile(src string, heap *gc.Heap, g *globals.Globals) (*object.Function, error) {
	p := &Parser{
		lex:     scanner.New(src),
		heap:    heap,
		globals: g,
	}
	heap.SetCompilerRoot(p)
	defer heap.ClearCompilerRoot()
	p.pushFuncCompiler(FuncScript, "")

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endFuncCompiler()

	if p.hadError {
		return nil, p.errs.Err()
	}
	return fn, nil
}

// MarkRoots keeps every Function under construction (and its partially
// built constant pool) reachable for the duration of the compile, per
// lang/gc's RootProvider contract.
func (p *Parser) MarkRoots(mark func(value.Value)) {
	for fc := p.cur; fc != nil; fc = fc.enclosing {
		mark(fc.function)
	}
}

func (p *Parser) pushFuncCompiler(ft FuncType, name string) {
	fn := p.heap.NewFunction()
	fc := &funcCompiler{
		enclosing:    p.cur,
		function:     fn,
		funcType:     ft,
		stringConsts: swiss.NewMap[string, uint32](8),
		numberConsts: swiss.NewMap[float64, uint32](8),
	}
	// Chain fc in before interning the name: MarkRoots walks the chain, and
	// the intern below may collect.
	p.cur = fc
	if name != "" {
		fn.Name = p.heap.InternString(name)
	}
	// Slot 0 is reserved: "this" for methods/initializers (so the receiver
	// is always local 0), unused-but-present for plain functions and the
	// top-level script, where it holds the callee itself.
	slot0 := ""
	if ft == FuncMethod || ft == FuncInitializer {
		slot0 = "this"
	}
	fc.locals = append(fc.locals, local{name: slot0, depth: 0, immutable: true})
}

// endFuncCompiler appends the implicit final return and pops back to the
// enclosing function compiler, returning the finished Function.
func (p *Parser) endFuncCompiler() *object.Function {
	p.emitImplicitReturn()
	fn := p.cur.function
	p.cur = p.cur.enclosing
	return fn
}

func (p *Parser) emitImplicitReturn() {
	if p.cur.funcType == FuncInitializer {
		p.chunk().EmitIndexed(value.OpGetLocal, value.OpGetLocalLong, 0, p.previous.Line)
	} else {
		p.emitOp(value.OpNil)
	}
	p.emitOp(value.OpReturn)
}

func (p *Parser) chunk() *value.Chunk { return &p.cur.function.Chunk }

// --- token stream -----------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.Scan()
		if p.current.Kind != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Text)
	}
}

func (p *Parser) check(kind token.Token) bool { return p.current.Kind == kind }

func (p *Parser) match(kind token.Token) bool {
	if !p.check(kind) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(kind token.Token, msg string) {
	if p.current.Kind == kind {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAt(tok scanner.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true
	p.errs.Add(gotoken.Position{Line: tok.Line}, msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.previous, msg) }

// synchronize discards tokens until a likely statement boundary, so one
// syntax error does not cascade into spurious follow-on errors.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != token.EOF {
		if p.previous.Kind == token.SEMI {
			return
		}
		switch p.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.IMMUT, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN, token.SWITCH:
			return
		}
		p.advance()
	}
}

func (p *Parser) syntheticToken(text string) scanner.Token {
	return scanner.Token{Kind: token.IDENT, Text: text, Line: p.previous.Line}
}

// --- emission helpers ---------------------------------------------------

func (p *Parser) emitOp(op value.OpCode) {
	p.chunk().WriteOp(op, p.previous.Line)
}

func (p *Parser) emitByteOp(op value.OpCode, b byte) {
	p.chunk().WriteByteOperand(op, b, p.previous.Line)
}

func (p *Parser) emitIndexed(shortOp, longOp value.OpCode, idx uint32) {
	p.chunk().EmitIndexed(shortOp, longOp, idx, p.previous.Line)
}

func (p *Parser) emitJump(op value.OpCode) int {
	return p.chunk().EmitJump(op, p.previous.Line)
}

func (p *Parser) patchJump(offset int) {
	if !p.chunk().PatchJump(offset) {
		p.error("Too much code to jump over.")
	}
}

func (p *Parser) emitLoop(start int) {
	if !p.chunk().EmitLoop(start, p.previous.Line) {
		p.error("Loop body too large.")
	}
}

// makeConstant appends v to the current chunk's constant pool, bounding the
// pool at the long form's 24-bit index space.
func (p *Parser) makeConstant(v value.Value) uint32 {
	idx := p.chunk().AddConstant(v)
	if idx > 0xFFFFFF {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (p *Parser) addStringConstant(s string) uint32 {
	if idx, ok := p.cur.stringConsts.Get(s); ok {
		return idx
	}
	str := p.heap.InternString(s)
	idx := p.makeConstant(str)
	p.cur.stringConsts.Put(s, idx)
	return idx
}

func (p *Parser) emitStringConstant(s string) {
	idx := p.addStringConstant(s)
	p.emitIndexed(value.OpConstant, value.OpConstantLong, idx)
}

func (p *Parser) emitNumberConstant(n float64) {
	idx, ok := p.cur.numberConsts.Get(n)
	if !ok {
		idx = p.makeConstant(value.Number(n))
		p.cur.numberConsts.Put(n, idx)
	}
	p.emitIndexed(value.OpConstant, value.OpConstantLong, idx)
}

// --- scope / local-variable bookkeeping ---------------------------------

func (p *Parser) beginScope() { p.cur.scopeDepth++ }

func (p *Parser) endScope() {
	fc := p.cur
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].depth > fc.scopeDepth {
		if fc.locals[len(fc.locals)-1].isCaptured {
			p.emitOp(value.OpCloseUpvalue)
		} else {
			p.emitOp(value.OpPop)
		}
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

func (p *Parser) addLocal(name string, immutable bool) int {
	fc := p.cur
	if len(fc.locals) >= 1<<16 {
		p.error("Too many local variables in function.")
		return len(fc.locals) - 1
	}
	fc.locals = append(fc.locals, local{name: name, depth: -1, immutable: immutable})
	return len(fc.locals) - 1
}

// declareLocal registers tok as a new local in the current scope, rejecting
// a duplicate name already declared at the same depth.
func (p *Parser) declareLocal(tok scanner.Token, immutable bool) {
	fc := p.cur
	for i := len(fc.locals) - 1; i >= 0; i-- {
		l := fc.locals[i]
		if l.depth != -1 && l.depth < fc.scopeDepth {
			break
		}
		if l.name == tok.Text {
			p.errorAt(tok, "Already a variable with this name in this scope.")
		}
	}
	p.addLocal(tok.Text, immutable)
}

func (p *Parser) markInitialized() {
	fc := p.cur
	if fc.scopeDepth == 0 {
		return
	}
	fc.locals[len(fc.locals)-1].depth = fc.scopeDepth
}

// resolveLocal searches fc's locals by name, reporting a compile error if
// the match is still mid-initialization (self-referential initializer).
func (p *Parser) resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue walks the enclosing-compiler chain looking for name,
// threading an upvalue through every intermediate function so each frame
// only ever captures from its immediate parent.
func (p *Parser) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if slot := p.resolveLocal(fc.enclosing, name); slot != -1 {
		fc.enclosing.locals[slot].isCaptured = true
		return p.addUpvalue(fc, uint32(slot), true, fc.enclosing.locals[slot].immutable)
	}
	if up := p.resolveUpvalue(fc.enclosing, name); up != -1 {
		return p.addUpvalue(fc, uint32(up), false, fc.enclosing.upvalues[up].immutable)
	}
	return -1
}

func (p *Parser) addUpvalue(fc *funcCompiler, index uint32, isLocal bool, immutable bool) int {
	for i, uv := range fc.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= 256 {
		p.error("Too many closure variables in function.")
		return 0
	}
	fc.upvalues = append(fc.upvalues, upvalueRef{index: index, isLocal: isLocal, immutable: immutable})
	fc.function.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

// --- break/continue scoping ----------------------------------------------

func (p *Parser) pushBreakable(isLoop bool, continueTarget int) *breakable {
	b := &breakable{
		isLoop:         isLoop,
		continueTarget: continueTarget,
		scopeDepth:     p.cur.scopeDepth,
		loopVarSlot:    -1,
		shadowSlot:     -1,
	}
	p.cur.breakables = append(p.cur.breakables, b)
	return b
}

func (p *Parser) popBreakable() {
	p.cur.breakables = p.cur.breakables[:len(p.cur.breakables)-1]
}

// emitScopePopsTo emits the runtime pops (or upvalue closes) for every local
// declared deeper than depth, without touching the compiler's own locals
// bookkeeping: used by break/continue, which jump out of a scope that is
// still syntactically open.
func (p *Parser) emitScopePopsTo(depth int) {
	fc := p.cur
	for i := len(fc.locals) - 1; i >= 0 && fc.locals[i].depth > depth; i-- {
		if fc.locals[i].isCaptured {
			p.emitOp(value.OpCloseUpvalue)
		} else {
			p.emitOp(value.OpPop)
		}
	}
}

// --- expressions ---------------------------------------------------------

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := getRule(p.previous.Kind)
	if rule.prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for prec <= getRule(p.current.Kind).precedence {
		p.advance()
		infix := getRule(p.previous.Kind).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(token.EQ) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) number(canAssign bool) {
	n, _ := strconv.ParseFloat(p.previous.Text, 64)
	p.emitNumberConstant(n)
}

func (p *Parser) strLiteral(canAssign bool) {
	p.emitStringConstant(p.previous.Text)
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Kind {
	case token.FALSE:
		p.emitOp(value.OpFalse)
	case token.TRUE:
		p.emitOp(value.OpTrue)
	case token.NIL:
		p.emitOp(value.OpNil)
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	opKind := p.previous.Kind
	line := p.previous.Line
	p.parsePrecedence(precUnary)
	switch opKind {
	case token.BANG:
		p.chunk().WriteOp(value.OpNot, line)
	case token.MINUS:
		p.chunk().WriteOp(value.OpNegate, line)
	}
}

func (p *Parser) binary(canAssign bool) {
	opKind := p.previous.Kind
	line := p.previous.Line
	r := getRule(opKind)
	p.parsePrecedence(r.precedence + 1)
	switch opKind {
	case token.BANG_EQ:
		p.chunk().WriteOp(value.OpEqual, line)
		p.chunk().WriteOp(value.OpNot, line)
	case token.EQ_EQ:
		p.chunk().WriteOp(value.OpEqual, line)
	case token.GT:
		p.chunk().WriteOp(value.OpGreater, line)
	case token.GT_EQ:
		p.chunk().WriteOp(value.OpLess, line)
		p.chunk().WriteOp(value.OpNot, line)
	case token.LT:
		p.chunk().WriteOp(value.OpLess, line)
	case token.LT_EQ:
		p.chunk().WriteOp(value.OpGreater, line)
		p.chunk().WriteOp(value.OpNot, line)
	case token.PLUS:
		p.chunk().WriteOp(value.OpAdd, line)
	case token.MINUS:
		p.chunk().WriteOp(value.OpSubtract, line)
	case token.STAR:
		p.chunk().WriteOp(value.OpMultiply, line)
	case token.SLASH:
		p.chunk().WriteOp(value.OpDivide, line)
	}
}

// ternary compiles the right-associative `cond ? then : else` operator: the
// else branch recurses back into parsePrecedence at the ternary's own
// precedence so that `a ? b : c ? d : e` groups as `a ? b : (c ? d : e)`.
func (p *Parser) ternary(canAssign bool) {
	thenJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.expression()
	p.consume(token.COLON, "Expect ':' after then-branch of ternary expression.")
	elseJump := p.emitJump(value.OpJump)
	p.patchJump(thenJump)
	p.emitOp(value.OpPop)
	p.parsePrecedence(precTernary)
	p.patchJump(elseJump)
}

func (p *Parser) and_(canAssign bool) {
	endJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *Parser) or_(canAssign bool) {
	elseJump := p.emitJump(value.OpJumpIfFalse)
	endJump := p.emitJump(value.OpJump)
	p.patchJump(elseJump)
	p.emitOp(value.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) argumentList() byte {
	var argc int
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if argc == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			argc++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(argc)
}

func (p *Parser) call(canAssign bool) {
	argc := p.argumentList()
	p.emitByteOp(value.OpCall, argc)
}

func (p *Parser) dot(canAssign bool) {
	p.consume(token.IDENT, "Expect property name after '.'.")
	nameIdx := p.addStringConstant(p.previous.Text)

	switch {
	case canAssign && p.match(token.EQ):
		p.expression()
		p.emitIndexed(value.OpSetProperty, value.OpSetPropertyLong, nameIdx)
	case p.match(token.LPAREN):
		argc := p.argumentList()
		p.chunk().EmitInvoke(value.OpInvoke, value.OpInvokeLong, nameIdx, argc, p.previous.Line)
	default:
		p.emitIndexed(value.OpGetProperty, value.OpGetPropertyLong, nameIdx)
	}
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) this_(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.namedVariable(p.previous, false)
}

func (p *Parser) super_(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}
	p.consume(token.DOT, "Expect '.' after 'super'.")
	p.consume(token.IDENT, "Expect superclass method name.")
	nameIdx := p.addStringConstant(p.previous.Text)

	p.namedVariable(p.syntheticToken("this"), false)
	if p.match(token.LPAREN) {
		argc := p.argumentList()
		p.namedVariable(p.syntheticToken("super"), false)
		p.chunk().EmitInvoke(value.OpSuperInvoke, value.OpSuperInvokeLong, nameIdx, argc, p.previous.Line)
	} else {
		p.namedVariable(p.syntheticToken("super"), false)
		p.emitIndexed(value.OpGetSuper, value.OpGetSuperLong, nameIdx)
	}
}

// namedVariable resolves tok as a local, an upvalue, or (failing both) a
// global, emitting the matching GET/SET pair. Assignment to a binding
// declared `immut` is a compile error, wherever it resolves.
func (p *Parser) namedVariable(tok scanner.Token, canAssign bool) {
	name := tok.Text

	if slot := p.resolveLocal(p.cur, name); slot != -1 {
		if canAssign && p.match(token.EQ) {
			if p.cur.locals[slot].immutable {
				p.errorAt(tok, fmt.Sprintf("Cannot assign to immutable variable '%s'.", name))
			}
			p.expression()
			p.emitIndexed(value.OpSetLocal, value.OpSetLocalLong, uint32(slot))
		} else {
			p.emitIndexed(value.OpGetLocal, value.OpGetLocalLong, uint32(slot))
		}
		return
	}

	if slot := p.resolveUpvalue(p.cur, name); slot != -1 {
		if canAssign && p.match(token.EQ) {
			if p.cur.upvalues[slot].immutable {
				p.errorAt(tok, fmt.Sprintf("Cannot assign to immutable variable '%s'.", name))
			}
			p.expression()
			p.emitByteOp(value.OpSetUpvalue, byte(slot))
		} else {
			p.emitByteOp(value.OpGetUpvalue, byte(slot))
		}
		return
	}

	idx, _, err := p.globals.Resolve(name)
	if err != nil {
		p.errorAt(tok, err.Error())
	}
	if canAssign && p.match(token.EQ) {
		if p.globals.IsImmutable(name) {
			p.errorAt(tok, fmt.Sprintf("Cannot assign to immutable variable '%s'.", name))
		}
		p.expression()
		p.emitIndexed(value.OpSetGlobal, value.OpSetGlobalLong, idx)
	} else {
		p.emitIndexed(value.OpGetGlobal, value.OpGetGlobalLong, idx)
	}
}
