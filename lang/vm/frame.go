package vm

import "github.com/Gawesomer/lox/lang/object"

// frame is one active function invocation: the closure it is executing, an
// instruction pointer into that closure's function's chunk, and the base
// stack index where slot 0 (the receiver or the callee itself) lives.
type frame struct {
	closure *object.Closure
	ip      int
	base    int
}

func (f *frame) readByte() byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (f *frame) readShort() uint16 {
	hi := f.readByte()
	lo := f.readByte()
	return uint16(hi)<<8 | uint16(lo)
}

// readIndexed reads a 1-byte or 3-byte big-endian constant-pool-style index,
// matching whichever of the short/long opcode forms the caller dispatched
// on.
func (f *frame) readIndexed(long bool) uint32 {
	if !long {
		return uint32(f.readByte())
	}
	b0 := f.readByte()
	b1 := f.readByte()
	b2 := f.readByte()
	return uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
}
