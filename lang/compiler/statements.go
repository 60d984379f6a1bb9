package compiler

import (
	"github.com/Gawesomer/lox/lang/token"
	"github.com/Gawesomer/lox/lang/value"
)

func (p *Parser) declaration() {
	switch {
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration(false)
	case p.match(token.IMMUT):
		p.varDeclaration(true)
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

// varDeclaration compiles both `var name = expr;` and, when immutable is
// true, `immut name = expr;`. At global scope, a previously declared
// immutable global may not be redefined.
func (p *Parser) varDeclaration(immutable bool) {
	p.consume(token.IDENT, "Expect variable name.")
	nameTok := p.previous
	isLocal := p.cur.scopeDepth > 0

	if isLocal {
		p.declareLocal(nameTok, immutable)
	} else if p.globals.IsImmutable(nameTok.Text) {
		p.errorAt(nameTok, "Cannot redefine immutable global '"+nameTok.Text+"'.")
	}

	if p.match(token.EQ) {
		p.expression()
	} else {
		p.emitOp(value.OpNil)
	}
	p.consume(token.SEMI, "Expect ';' after variable declaration.")

	if isLocal {
		p.markInitialized()
		return
	}

	idx, _, err := p.globals.Resolve(nameTok.Text)
	if err != nil {
		p.errorAt(nameTok, err.Error())
	}
	if immutable {
		p.globals.MarkImmutable(nameTok.Text)
	}
	p.emitIndexed(value.OpDefineGlobal, value.OpDefineGlobalLong, idx)
}

func (p *Parser) funDeclaration() {
	p.consume(token.IDENT, "Expect function name.")
	nameTok := p.previous
	isLocal := p.cur.scopeDepth > 0

	var globalIdx uint32
	if isLocal {
		p.declareLocal(nameTok, false)
		p.markInitialized()
	} else {
		idx, _, err := p.globals.Resolve(nameTok.Text)
		if err != nil {
			p.errorAt(nameTok, err.Error())
		}
		globalIdx = idx
	}

	p.function(FuncFunction, nameTok.Text)

	if !isLocal {
		p.emitIndexed(value.OpDefineGlobal, value.OpDefineGlobalLong, globalIdx)
	}
}

// function compiles a function's parameter list and body into a fresh
// funcCompiler, then emits OP_CLOSURE (plus its upvalue-capture pairs) into
// the enclosing function's chunk.
func (p *Parser) function(ft FuncType, name string) {
	p.pushFuncCompiler(ft, name)
	p.beginScope()
	p.consume(token.LPAREN, "Expect '(' after function name.")
	if !p.check(token.RPAREN) {
		for {
			p.cur.function.Arity++
			if p.cur.function.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			p.consume(token.IDENT, "Expect parameter name.")
			p.declareLocal(p.previous, false)
			p.markInitialized()
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after parameters.")
	p.consume(token.LBRACE, "Expect '{' before function body.")
	p.block()

	inner := p.cur
	fn := p.endFuncCompiler()

	idx := p.makeConstant(fn)
	p.emitIndexed(value.OpClosure, value.OpClosureLong, idx)
	for _, uv := range inner.upvalues {
		p.chunk().EmitClosureUpvalue(uv.isLocal, uv.index, p.previous.Line)
	}
}

// classDeclaration compiles `class Name { ... }` and `class Name < Super {
// ... }`.
func (p *Parser) classDeclaration() {
	p.consume(token.IDENT, "Expect class name.")
	nameTok := p.previous
	nameIdx := p.addStringConstant(nameTok.Text)
	isLocal := p.cur.scopeDepth > 0

	var globalIdx uint32
	if isLocal {
		p.declareLocal(nameTok, false)
	} else {
		idx, _, err := p.globals.Resolve(nameTok.Text)
		if err != nil {
			p.errorAt(nameTok, err.Error())
		}
		globalIdx = idx
	}

	p.emitIndexed(value.OpClass, value.OpClassLong, nameIdx)

	if isLocal {
		p.markInitialized()
	} else {
		p.emitIndexed(value.OpDefineGlobal, value.OpDefineGlobalLong, globalIdx)
	}

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	hasSuper := false
	if p.match(token.LT) {
		p.consume(token.IDENT, "Expect superclass name.")
		superTok := p.previous
		if superTok.Text == nameTok.Text {
			p.errorAt(superTok, "A class can't inherit from itself.")
		}
		p.namedVariable(superTok, false)

		p.beginScope()
		p.addLocal("super", true)
		p.markInitialized()

		p.namedVariable(nameTok, false)
		p.emitOp(value.OpInherit)
		cc.hasSuperclass = true
		hasSuper = true
	}

	p.namedVariable(nameTok, false)
	p.consume(token.LBRACE, "Expect '{' before class body.")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RBRACE, "Expect '}' after class body.")
	p.emitOp(value.OpPop)

	if hasSuper {
		p.endScope()
	}
	p.class = cc.enclosing
}

func (p *Parser) method() {
	p.consume(token.IDENT, "Expect method name.")
	nameTok := p.previous
	nameIdx := p.addStringConstant(nameTok.Text)

	ft := FuncMethod
	if nameTok.Text == "init" {
		ft = FuncInitializer
	}
	p.function(ft, nameTok.Text)
	p.emitIndexed(value.OpMethod, value.OpMethodLong, nameIdx)
}

func (p *Parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.SWITCH):
		p.switchStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.BREAK):
		p.breakStatement()
	case p.match(token.CONTINUE):
		p.continueStatement()
	default:
		p.expressionStatement()
	}
}

// block compiles statements up to (and consuming) the closing '}'. The
// opening '{' is assumed already consumed by the caller.
func (p *Parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "Expect '}' after block.")
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.SEMI, "Expect ';' after value.")
	p.emitOp(value.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMI, "Expect ';' after expression.")
	p.emitOp(value.OpPop)
}

func (p *Parser) ifStatement() {
	p.consume(token.LPAREN, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.statement()

	elseJump := p.emitJump(value.OpJump)
	p.patchJump(thenJump)
	p.emitOp(value.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	b := p.pushBreakable(true, loopStart)

	p.consume(token.LPAREN, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(value.OpPop)
	for _, j := range b.breakJumps {
		p.patchJump(j)
	}
	p.popBreakable()
}

// forStatement desugars the three-clause C-style for loop into the
// equivalent while-loop bytecode shape. When the initializer declares a
// fresh loop variable, the body runs against a per-iteration shadow local
// so that closures created in different iterations capture distinct cells.
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "Expect '(' after 'for'.")

	hasVarInit := false
	switch {
	case p.match(token.SEMI):
		// no initializer
	case p.match(token.VAR):
		p.varDeclaration(false)
		hasVarInit = true
	case p.match(token.IMMUT):
		p.varDeclaration(true)
		hasVarInit = true
	default:
		p.expressionStatement()
	}

	var loopVarSlot int
	var loopVarName string
	var loopVarImmutable bool
	if hasVarInit {
		loopVarSlot = len(p.cur.locals) - 1
		loopVarName = p.cur.locals[loopVarSlot].name
		loopVarImmutable = p.cur.locals[loopVarSlot].immutable
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.check(token.SEMI) {
		p.expression()
		p.consume(token.SEMI, "Expect ';' after loop condition.")
		exitJump = p.emitJump(value.OpJumpIfFalse)
		p.emitOp(value.OpPop)
	} else {
		p.consume(token.SEMI, "Expect ';' after loop condition.")
	}

	if !p.check(token.RPAREN) {
		bodyJump := p.emitJump(value.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(value.OpPop)
		p.consume(token.RPAREN, "Expect ')' after for clauses.")
		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	} else {
		p.consume(token.RPAREN, "Expect ')' after for clauses.")
	}

	b := p.pushBreakable(true, loopStart)

	if hasVarInit {
		p.beginScope()
		p.emitIndexed(value.OpGetLocal, value.OpGetLocalLong, uint32(loopVarSlot))
		p.addLocal(loopVarName, loopVarImmutable)
		p.markInitialized()
		b.loopVarSlot = loopVarSlot
		b.shadowSlot = len(p.cur.locals) - 1

		p.statement()

		shadowSlot := len(p.cur.locals) - 1
		p.emitIndexed(value.OpGetLocal, value.OpGetLocalLong, uint32(shadowSlot))
		p.emitIndexed(value.OpSetLocal, value.OpSetLocalLong, uint32(loopVarSlot))
		p.emitOp(value.OpPop)

		p.endScope()
	} else {
		p.statement()
	}

	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(value.OpPop)
	}
	for _, j := range b.breakJumps {
		p.patchJump(j)
	}
	p.popBreakable()

	p.endScope()
}

// switchStatement compiles `switch (expr) { case v: ...  default: ... }`
// with C-style fallthrough between cases and an optional `break` to exit
// early. Each case's test uses OP_CASE_EQUAL, which (unlike OP_EQUAL)
// leaves the discriminant on the stack so the next case can test it too.
func (p *Parser) switchStatement() {
	p.consume(token.LPAREN, "Expect '(' after 'switch'.")
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after switch expression.")
	p.consume(token.LBRACE, "Expect '{' before switch body.")

	p.beginScope()
	// The discriminant occupies a stack slot for the whole switch; reserve a
	// nameless local for it so locals declared in case bodies get the right
	// slots, and so break/continue account for it.
	p.addLocal("", true)
	p.markInitialized()
	b := p.pushBreakable(false, -1)

	prevJumpIfFalse := -1
	prevFallJump := -1

	for p.match(token.CASE) {
		if prevJumpIfFalse != -1 {
			// A failed test lands here with its boolean still on the stack.
			p.patchJump(prevJumpIfFalse)
			prevJumpIfFalse = -1
			p.emitOp(value.OpPop)
		}

		p.expression()
		p.consume(token.COLON, "Expect ':' after case value.")
		p.emitOp(value.OpCaseEqual)
		jumpIfFalse := p.emitJump(value.OpJumpIfFalse)
		p.emitOp(value.OpPop)

		if prevFallJump != -1 {
			p.patchJump(prevFallJump)
			prevFallJump = -1
		}

		// Case bodies are statements; a declaration directly in a case body
		// would leave stack slots behind when the case is skipped. Wrap in a
		// block to declare locals.
		for !p.check(token.CASE) && !p.check(token.DEFAULT) && !p.check(token.RBRACE) && !p.check(token.EOF) {
			p.statement()
		}
		prevFallJump = p.emitJump(value.OpJump)
		prevJumpIfFalse = jumpIfFalse
	}

	if prevJumpIfFalse != -1 {
		p.patchJump(prevJumpIfFalse)
		prevJumpIfFalse = -1
		p.emitOp(value.OpPop)
	}

	if p.match(token.DEFAULT) {
		p.consume(token.COLON, "Expect ':' after 'default'.")
		if prevFallJump != -1 {
			p.patchJump(prevFallJump)
			prevFallJump = -1
		}
		for !p.check(token.RBRACE) && !p.check(token.EOF) {
			p.statement()
		}
	}
	if prevFallJump != -1 {
		p.patchJump(prevFallJump)
	}

	p.consume(token.RBRACE, "Expect '}' after switch body.")

	for _, j := range b.breakJumps {
		p.patchJump(j)
	}
	p.popBreakable()
	p.endScope() // pops the discriminant
}

func (p *Parser) returnStatement() {
	if p.cur.funcType == FuncScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(token.SEMI) {
		p.emitImplicitReturn()
		return
	}
	if p.cur.funcType == FuncInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(token.SEMI, "Expect ';' after return value.")
	p.emitOp(value.OpReturn)
}

func (p *Parser) breakStatement() {
	b := p.currentBreakable()
	if b == nil {
		p.error("Can't use 'break' outside of a loop or switch.")
		p.consume(token.SEMI, "Expect ';' after 'break'.")
		return
	}
	p.emitScopePopsTo(b.scopeDepth)
	j := p.emitJump(value.OpJump)
	b.breakJumps = append(b.breakJumps, j)
	p.consume(token.SEMI, "Expect ';' after 'break'.")
}

func (p *Parser) continueStatement() {
	b := p.nearestLoopBreakable()
	if b == nil {
		p.error("Can't use 'continue' outside of a loop.")
		p.consume(token.SEMI, "Expect ';' after 'continue'.")
		return
	}
	if b.shadowSlot != -1 {
		// Continue skips the loop tail's shadow write-back; do it here so the
		// increment sees the body's last assignment to the loop variable.
		p.emitIndexed(value.OpGetLocal, value.OpGetLocalLong, uint32(b.shadowSlot))
		p.emitIndexed(value.OpSetLocal, value.OpSetLocalLong, uint32(b.loopVarSlot))
		p.emitOp(value.OpPop)
	}
	p.emitScopePopsTo(b.scopeDepth)
	p.emitLoop(b.continueTarget)
	p.consume(token.SEMI, "Expect ';' after 'continue'.")
}

func (p *Parser) currentBreakable() *breakable {
	bs := p.cur.breakables
	if len(bs) == 0 {
		return nil
	}
	return bs[len(bs)-1]
}

// nearestLoopBreakable finds the innermost enclosing loop, skipping over any
// switch statements nested inside it: `continue` always targets a loop,
// even when the lexically nearest breakable is a switch.
func (p *Parser) nearestLoopBreakable() *breakable {
	bs := p.cur.breakables
	for i := len(bs) - 1; i >= 0; i-- {
		if bs[i].isLoop {
			return bs[i]
		}
	}
	return nil
}
