package value

import "fmt"

// lineRun is one (line, run-length) pair of the chunk's run-length-encoded
// line table.
type lineRun struct {
	line int
	run  int
}

// Chunk is a function's compiled bytecode: the instruction stream, its
// constant pool, and a compact line table for error reporting. Operands use
// fixed 1-byte or 3-byte big-endian forms rather than varints, so the
// 256-constant rollover to the long form sits at an exact, testable boundary.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []lineRun
}

// Write appends a raw byte to the code stream, recording its source line in
// the run-length line table.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	if n := len(c.lines); n > 0 && c.lines[n-1].line == line {
		c.lines[n-1].run++
	} else {
		c.lines = append(c.lines, lineRun{line: line, run: 1})
	}
}

// WriteOp appends a single opcode byte with no operand.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.Write(byte(op), line)
}

// WriteByteOperand appends op followed by a single operand byte.
func (c *Chunk) WriteByteOperand(op OpCode, operand byte, line int) {
	c.Write(byte(op), line)
	c.Write(operand, line)
}

// WriteLongOperand appends op followed by a 3-byte big-endian operand.
func (c *Chunk) WriteLongOperand(op OpCode, operand uint32, line int) {
	c.Write(byte(op), line)
	c.Write(byte(operand>>16), line)
	c.Write(byte(operand>>8), line)
	c.Write(byte(operand), line)
}

// EmitIndexed writes either shortOp <idx> (1-byte operand) or longOp <idx24>
// (3-byte big-endian operand) depending on whether idx fits a byte. The
// shortOp/longOp pair lets every constant-pool-indexed family (constants,
// globals, classes, methods, properties, super lookups, closures) share the
// same short/long-picking logic.
func (c *Chunk) EmitIndexed(shortOp, longOp OpCode, idx uint32, line int) {
	if idx <= 0xFF {
		c.WriteByteOperand(shortOp, byte(idx), line)
	} else {
		c.WriteLongOperand(longOp, idx, line)
	}
}

// EmitJump writes a jump opcode with a 2-byte placeholder operand and
// returns the offset of the first placeholder byte, to be patched later by
// PatchJump.
func (c *Chunk) EmitJump(op OpCode, line int) int {
	c.Write(byte(op), line)
	c.Write(0xFF, line)
	c.Write(0xFF, line)
	return len(c.Code) - 2
}

// PatchJump backpatches the 2-byte placeholder at offset so the jump lands
// at the current end of the code stream. It is a compile error (reported by
// the caller) for the resulting offset to exceed 65535.
func (c *Chunk) PatchJump(offset int) (ok bool) {
	jump := len(c.Code) - offset - 2
	if jump > 0xFFFF {
		return false
	}
	c.Code[offset] = byte(jump >> 8)
	c.Code[offset+1] = byte(jump)
	return true
}

// EmitLoop writes OP_LOOP with a 2-byte backward offset to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) (ok bool) {
	c.Write(byte(OpLoop), line)
	offset := len(c.Code) - loopStart + 2
	if offset > 0xFFFF {
		return false
	}
	c.Write(byte(offset>>8), line)
	c.Write(byte(offset), line)
	return true
}

// EmitInvoke writes an OP_INVOKE/OP_SUPER_INVOKE-family instruction: the
// method name's constant index (short or long form) followed by a 1-byte
// argument count.
func (c *Chunk) EmitInvoke(shortOp, longOp OpCode, nameIdx uint32, argc byte, line int) {
	if nameIdx <= 0xFF {
		c.Write(byte(shortOp), line)
		c.Write(byte(nameIdx), line)
	} else {
		c.Write(byte(longOp), line)
		c.Write(byte(nameIdx>>16), line)
		c.Write(byte(nameIdx>>8), line)
		c.Write(byte(nameIdx), line)
	}
	c.Write(argc, line)
}

// EmitClosureUpvalue appends one (is_local, slot) pair following an
// OP_CLOSURE/OP_CLOSURE_LONG instruction's function-constant operand. The
// slot is encoded as a 2-byte big-endian value so a function may capture
// locals beyond slot 255.
func (c *Chunk) EmitClosureUpvalue(isLocal bool, index uint32, line int) {
	if isLocal {
		c.Write(1, line)
	} else {
		c.Write(0, line)
	}
	c.Write(byte(index>>8), line)
	c.Write(byte(index), line)
}

// AddConstant appends v to the constant pool and returns its index. The
// compiler is responsible for per-function deduplication; Chunk itself does
// not dedup.
func (c *Chunk) AddConstant(v Value) uint32 {
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// GetLine returns the source line that produced the instruction at the given
// code offset, by walking the run-length line table.
func (c *Chunk) GetLine(offset int) int {
	remaining := offset
	for _, r := range c.lines {
		if remaining < r.run {
			return r.line
		}
		remaining -= r.run
	}
	if len(c.lines) > 0 {
		return c.lines[len(c.lines)-1].line
	}
	return 0
}

// upvalueCounter is implemented by Function constants so the disassembler
// can skip over an OP_CLOSURE instruction's trailing (is_local, slot) pairs
// without this package importing the object variants built on top of it.
type upvalueCounter interface {
	CountUpvalues() int
}

// Disassemble renders a single instruction at offset as human-readable text
// and returns the offset of the next instruction. A developer aid, reachable
// from cmd/lox's -disassemble flag and the VM's execution-trace hook.
func (c *Chunk) Disassemble(offset int) (string, int) {
	op := OpCode(c.Code[offset])
	line := c.GetLine(offset)
	switch op {
	case OpClosure:
		idx := uint32(c.Code[offset+1])
		return fmt.Sprintf("%4d %-20s %4d", line, op, idx), c.skipUpvaluePairs(idx, offset+2)
	case OpClosureLong:
		idx := uint32(c.Code[offset+1])<<16 | uint32(c.Code[offset+2])<<8 | uint32(c.Code[offset+3])
		return fmt.Sprintf("%4d %-20s %4d", line, op, idx), c.skipUpvaluePairs(idx, offset+4)
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpGetLocal,
		OpSetLocal, OpClass, OpMethod, OpGetProperty, OpSetProperty,
		OpGetSuper:
		idx := c.Code[offset+1]
		return fmt.Sprintf("%4d %-20s %4d", line, op, idx), offset + 2
	case OpConstantLong, OpDefineGlobalLong, OpGetGlobalLong, OpSetGlobalLong,
		OpGetLocalLong, OpSetLocalLong, OpClassLong, OpMethodLong,
		OpGetPropertyLong, OpSetPropertyLong, OpGetSuperLong:
		idx := uint32(c.Code[offset+1])<<16 | uint32(c.Code[offset+2])<<8 | uint32(c.Code[offset+3])
		return fmt.Sprintf("%4d %-20s %4d", line, op, idx), offset + 4
	case OpInvoke, OpSuperInvoke:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		return fmt.Sprintf("%4d %-20s %4d (%d args)", line, op, idx, argc), offset + 3
	case OpInvokeLong, OpSuperInvokeLong:
		idx := uint32(c.Code[offset+1])<<16 | uint32(c.Code[offset+2])<<8 | uint32(c.Code[offset+3])
		argc := c.Code[offset+4]
		return fmt.Sprintf("%4d %-20s %4d (%d args)", line, op, idx, argc), offset + 5
	case OpJump, OpJumpIfFalse, OpLoop:
		jump := uint16(c.Code[offset+1])<<8 | uint16(c.Code[offset+2])
		return fmt.Sprintf("%4d %-20s -> %d", line, op, jump), offset + 3
	case OpGetUpvalue, OpSetUpvalue, OpCall:
		return fmt.Sprintf("%4d %-20s %4d", line, op, c.Code[offset+1]), offset + 2
	default:
		return fmt.Sprintf("%4d %-20s", line, op), offset + 1
	}
}

// skipUpvaluePairs returns the offset just past the (is_local, slot) pairs
// that follow an OP_CLOSURE's function-constant operand.
func (c *Chunk) skipUpvaluePairs(constIdx uint32, offset int) int {
	fn, ok := c.Constants[constIdx].(upvalueCounter)
	if !ok {
		return offset
	}
	return offset + 3*fn.CountUpvalues()
}
