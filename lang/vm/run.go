package vm

import (
	"fmt"
	"math"

	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/value"
)

// run drives the current top call frame through its chunk's bytecode until
// either the outermost frame returns (InterpretOK) or a runtime error aborts
// execution (InterpretRuntimeError). A local fr *frame is cached for the
// active frame and refreshed after every opcode that pushes or pops a frame
// (CALL/INVOKE/SUPER_INVOKE/RETURN).
func (vm *VM) run() Result {
	fr := &vm.frames[len(vm.frames)-1]

	for {
		if vm.Trace != nil {
			s, _ := fr.closure.Function.Chunk.Disassemble(fr.ip)
			vm.Trace("%s", s)
		}

		op := value.OpCode(fr.readByte())
		switch op {
		case value.OpConstant:
			vm.push(fr.closure.Function.Chunk.Constants[fr.readIndexed(false)])
		case value.OpConstantLong:
			vm.push(fr.closure.Function.Chunk.Constants[fr.readIndexed(true)])

		case value.OpNil:
			vm.push(value.Nil{})
		case value.OpTrue:
			vm.push(value.Bool(true))
		case value.OpFalse:
			vm.push(value.Bool(false))
		case value.OpPop:
			vm.pop()

		case value.OpGetLocal:
			vm.push(vm.stack[fr.base+int(fr.readIndexed(false))])
		case value.OpGetLocalLong:
			vm.push(vm.stack[fr.base+int(fr.readIndexed(true))])
		case value.OpSetLocal:
			vm.stack[fr.base+int(fr.readIndexed(false))] = vm.peek(0)
		case value.OpSetLocalLong:
			vm.stack[fr.base+int(fr.readIndexed(true))] = vm.peek(0)

		case value.OpGetGlobal:
			if !vm.getGlobal(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
		case value.OpGetGlobalLong:
			if !vm.getGlobal(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}
		case value.OpDefineGlobal:
			vm.globals.Set(fr.readIndexed(false), vm.pop())
		case value.OpDefineGlobalLong:
			vm.globals.Set(fr.readIndexed(true), vm.pop())
		case value.OpSetGlobal:
			if !vm.setGlobal(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
		case value.OpSetGlobalLong:
			if !vm.setGlobal(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}

		case value.OpGetUpvalue:
			slot := fr.readByte()
			vm.push(*fr.closure.Upvalues[slot].Location)
		case value.OpSetUpvalue:
			slot := fr.readByte()
			*fr.closure.Upvalues[slot].Location = vm.peek(0)

		case value.OpGetProperty:
			if !vm.getProperty(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
		case value.OpGetPropertyLong:
			if !vm.getProperty(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}
		case value.OpSetProperty:
			if !vm.setProperty(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
		case value.OpSetPropertyLong:
			if !vm.setProperty(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}

		case value.OpGetSuper:
			if !vm.getSuper(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
		case value.OpGetSuperLong:
			if !vm.getSuper(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}

		case value.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case value.OpCaseEqual:
			b := vm.pop()
			a := vm.peek(0)
			vm.push(value.Bool(value.Equal(a, b)))

		case value.OpGreater:
			if !vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a > b) }) {
				return InterpretRuntimeError
			}
		case value.OpLess:
			if !vm.numericBinary(func(a, b float64) value.Value { return value.Bool(a < b) }) {
				return InterpretRuntimeError
			}
		case value.OpAdd:
			if !vm.add() {
				return InterpretRuntimeError
			}
		case value.OpSubtract:
			if !vm.numericBinary(func(a, b float64) value.Value { return value.Number(a - b) }) {
				return InterpretRuntimeError
			}
		case value.OpMultiply:
			if !vm.numericBinary(func(a, b float64) value.Value { return value.Number(a * b) }) {
				return InterpretRuntimeError
			}
		case value.OpDivide:
			if !vm.numericBinary(func(a, b float64) value.Value { return value.Number(a / b) }) {
				return InterpretRuntimeError
			}

		case value.OpNot:
			vm.push(value.Bool(value.IsFalsey(vm.pop())))
		case value.OpNegate:
			n, ok := vm.peek(0).(value.Number)
			if !ok {
				vm.runtimeError("Operand must be a number.")
				return InterpretRuntimeError
			}
			vm.pop()
			vm.push(-n)

		case value.OpPrint:
			fmt.Fprintln(vm.stdout, stringify(vm.pop()))

		case value.OpJump:
			offset := fr.readShort()
			fr.ip += int(offset)
		case value.OpJumpIfFalse:
			offset := fr.readShort()
			if value.IsFalsey(vm.peek(0)) {
				fr.ip += int(offset)
			}
		case value.OpLoop:
			offset := fr.readShort()
			fr.ip -= int(offset)

		case value.OpCall:
			argc := int(fr.readByte())
			if !vm.callValue(vm.peek(argc), argc) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]

		case value.OpInvoke:
			if !vm.invokeAt(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]
		case value.OpInvokeLong:
			if !vm.invokeAt(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]
		case value.OpSuperInvoke:
			if !vm.superInvokeAt(fr.readIndexed(false)) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]
		case value.OpSuperInvokeLong:
			if !vm.superInvokeAt(fr.readIndexed(true)) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]

		case value.OpClosure:
			fr = vm.closeOverFunction(fr, false)
		case value.OpClosureLong:
			fr = vm.closeOverFunction(fr, true)

		case value.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case value.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the top-level script object
				return InterpretOK
			}
			vm.stack = vm.stack[:fr.base]
			vm.push(result)
			fr = &vm.frames[len(vm.frames)-1]

		case value.OpClass:
			name := fr.closure.Function.Chunk.Constants[fr.readIndexed(false)].(*value.String)
			vm.push(vm.heap.NewClass(name))
		case value.OpClassLong:
			name := fr.closure.Function.Chunk.Constants[fr.readIndexed(true)].(*value.String)
			vm.push(vm.heap.NewClass(name))

		case value.OpMethod:
			vm.defineMethod(fr.readIndexed(false))
		case value.OpMethodLong:
			vm.defineMethod(fr.readIndexed(true))

		case value.OpInherit:
			if !vm.inherit() {
				return InterpretRuntimeError
			}

		default:
			vm.runtimeError("Unknown opcode %d.", op)
			return InterpretRuntimeError
		}
	}
}

func (vm *VM) getGlobal(idx uint32) bool {
	v := vm.globals.Get(idx)
	if _, ok := v.(value.Undefined); ok {
		vm.runtimeError("Undefined variable '%s'.", vm.globals.NameOf(idx))
		return false
	}
	vm.push(v)
	return true
}

func (vm *VM) setGlobal(idx uint32) bool {
	if _, ok := vm.globals.Get(idx).(value.Undefined); ok {
		vm.runtimeError("Undefined variable '%s'.", vm.globals.NameOf(idx))
		return false
	}
	vm.globals.Set(idx, vm.peek(0))
	return true
}

func (vm *VM) numericBinary(op func(a, b float64) value.Value) bool {
	bn, bok := vm.peek(0).(value.Number)
	an, aok := vm.peek(1).(value.Number)
	if !aok || !bok {
		vm.runtimeError("Operands must be numbers.")
		return false
	}
	vm.pop()
	vm.pop()
	vm.push(op(float64(an), float64(bn)))
	return true
}

// add implements OP_ADD's dual string-concatenation/numeric-addition
// semantics.
func (vm *VM) add() bool {
	b := vm.peek(0)
	a := vm.peek(1)
	as, aIsStr := a.(*value.String)
	bs, bIsStr := b.(*value.String)
	switch {
	case aIsStr && bIsStr:
		// Operands stay on the stack until the result exists: interning may
		// collect, and the stack is what keeps them reachable.
		result := vm.heap.InternString(as.Chars + bs.Chars)
		vm.pop()
		vm.pop()
		vm.push(result)
	default:
		an, aok := a.(value.Number)
		bn, bok := b.(value.Number)
		if !aok || !bok {
			vm.runtimeError("Operands must be two numbers or two strings.")
			return false
		}
		vm.pop()
		vm.pop()
		vm.push(an + bn)
	}
	return true
}

func (vm *VM) closeOverFunction(fr *frame, long bool) *frame {
	fn := fr.closure.Function.Chunk.Constants[fr.readIndexed(long)].(*object.Function)
	closure := vm.heap.NewClosure(fn)
	vm.push(closure)
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := fr.readByte() == 1
		idx := int(fr.readShort())
		if isLocal {
			closure.Upvalues[i] = vm.captureUpvalue(fr.base + idx)
		} else {
			closure.Upvalues[i] = fr.closure.Upvalues[idx]
		}
	}
	return fr
}

func (vm *VM) defineMethod(nameIdx uint32) {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)
	method := vm.peek(0).(*object.Closure)
	class := vm.peek(1).(*object.Class)
	class.Methods.Set(name, method)
	vm.pop()
}

func (vm *VM) inherit() bool {
	sub, ok := vm.pop().(*object.Class)
	if !ok {
		vm.runtimeError("Superclass must be a class.")
		return false
	}
	super, ok := vm.peek(0).(*object.Class)
	if !ok {
		vm.runtimeError("Superclass must be a class.")
		return false
	}
	sub.Methods.AddAll(super.Methods)
	return true
}

// stringify renders v the way OP_PRINT does.
func stringify(v value.Value) string {
	switch vv := v.(type) {
	case value.Nil:
		return "nil"
	case value.Bool:
		if vv {
			return "true"
		}
		return "false"
	case value.Number:
		f := float64(vv)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return fmt.Sprintf("%g", f)
		}
		return fmt.Sprintf("%v", f)
	case value.Object:
		return vv.String()
	default:
		return "nil"
	}
}
