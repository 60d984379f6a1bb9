package value

// OpCode is one bytecode instruction. Families that address the constant
// pool, globals table, locals, or names come in a 1-byte short form (operand
// fits in a byte) and a 3-byte big-endian long form; every emission site in
// lang/compiler picks short or long at emit time and the pair is kept
// adjacent here to make that pairing obvious.
type OpCode byte

const (
	OpNil OpCode = iota
	OpTrue
	OpFalse
	OpPop
	OpEqual
	OpCaseEqual // like OpEqual but leaves the discriminant on the stack (switch fallthrough)
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpReturn
	OpCloseUpvalue
	OpInherit

	OpJump        // 3-byte: 16-bit forward offset
	OpJumpIfFalse // 3-byte: 16-bit forward offset, does not pop the condition
	OpLoop        // 3-byte: 16-bit backward offset

	OpGetUpvalue // 1-byte slot
	OpSetUpvalue // 1-byte slot

	OpCall // 1-byte argc

	OpConstant
	OpConstantLong
	OpDefineGlobal
	OpDefineGlobalLong
	OpGetGlobal
	OpGetGlobalLong
	OpSetGlobal
	OpSetGlobalLong
	OpGetLocal
	OpGetLocalLong
	OpSetLocal
	OpSetLocalLong
	OpClass
	OpClassLong
	OpMethod
	OpMethodLong
	OpClosure
	OpClosureLong
	OpGetProperty
	OpGetPropertyLong
	OpSetProperty
	OpSetPropertyLong
	OpGetSuper
	OpGetSuperLong
	OpInvoke
	OpInvokeLong
	OpSuperInvoke
	OpSuperInvokeLong
)

var opcodeNames = map[OpCode]string{
	OpNil: "OP_NIL", OpTrue: "OP_TRUE", OpFalse: "OP_FALSE", OpPop: "OP_POP",
	OpEqual: "OP_EQUAL", OpCaseEqual: "OP_CASE_EQUAL", OpGreater: "OP_GREATER",
	OpLess: "OP_LESS", OpAdd: "OP_ADD", OpSubtract: "OP_SUBTRACT",
	OpMultiply: "OP_MULTIPLY", OpDivide: "OP_DIVIDE", OpNot: "OP_NOT",
	OpNegate: "OP_NEGATE", OpPrint: "OP_PRINT", OpReturn: "OP_RETURN",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE", OpInherit: "OP_INHERIT",
	OpJump: "OP_JUMP", OpJumpIfFalse: "OP_JUMP_IF_FALSE", OpLoop: "OP_LOOP",
	OpGetUpvalue: "OP_GET_UPVALUE", OpSetUpvalue: "OP_SET_UPVALUE",
	OpCall:     "OP_CALL",
	OpConstant: "OP_CONSTANT", OpConstantLong: "OP_CONSTANT_LONG",
	OpDefineGlobal: "OP_DEFINE_GLOBAL", OpDefineGlobalLong: "OP_DEFINE_GLOBAL_LONG",
	OpGetGlobal: "OP_GET_GLOBAL", OpGetGlobalLong: "OP_GET_GLOBAL_LONG",
	OpSetGlobal: "OP_SET_GLOBAL", OpSetGlobalLong: "OP_SET_GLOBAL_LONG",
	OpGetLocal: "OP_GET_LOCAL", OpGetLocalLong: "OP_GET_LOCAL_LONG",
	OpSetLocal: "OP_SET_LOCAL", OpSetLocalLong: "OP_SET_LOCAL_LONG",
	OpClass: "OP_CLASS", OpClassLong: "OP_CLASS_LONG",
	OpMethod: "OP_METHOD", OpMethodLong: "OP_METHOD_LONG",
	OpClosure: "OP_CLOSURE", OpClosureLong: "OP_CLOSURE_LONG",
	OpGetProperty: "OP_GET_PROPERTY", OpGetPropertyLong: "OP_GET_PROPERTY_LONG",
	OpSetProperty: "OP_SET_PROPERTY", OpSetPropertyLong: "OP_SET_PROPERTY_LONG",
	OpGetSuper: "OP_GET_SUPER", OpGetSuperLong: "OP_GET_SUPER_LONG",
	OpInvoke: "OP_INVOKE", OpInvokeLong: "OP_INVOKE_LONG",
	OpSuperInvoke: "OP_SUPER_INVOKE", OpSuperInvokeLong: "OP_SUPER_INVOKE_LONG",
}

func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}
