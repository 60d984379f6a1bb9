package vm

import (
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/value"
)

// callValue dispatches a CALL/INVOKE-family instruction's callee to the
// right invocation protocol: a closure pushes a
// new frame, a native is invoked directly, a class constructs an instance
// (and calls its "init" method when present), and a bound method rebinds
// its receiver before calling through to its closure.
func (vm *VM) callValue(callee value.Value, argc int) bool {
	switch c := callee.(type) {
	case *object.Closure:
		return vm.call(c, argc)
	case *object.Native:
		return vm.callNative(c, argc)
	case *object.Class:
		return vm.instantiate(c, argc)
	case *object.BoundMethod:
		vm.stack[len(vm.stack)-argc-1] = c.Receiver
		return vm.call(c.Method, argc)
	default:
		vm.runtimeError("Can only call functions and classes.")
		return false
	}
}

func (vm *VM) call(closure *object.Closure, argc int) bool {
	if argc != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
		return false
	}
	if len(vm.frames) == FramesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}
	vm.frames = append(vm.frames, frame{
		closure: closure,
		base:    len(vm.stack) - argc - 1,
	})
	return true
}

func (vm *VM) callNative(n *object.Native, argc int) bool {
	if argc != n.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", n.Arity, argc)
		return false
	}
	argv := vm.stack[len(vm.stack)-argc:]
	var result value.Value = value.Nil{}
	ok, err := n.Fn(argv, &result)
	if !ok {
		if err == nil {
			err = errGenericNativeFailure
		}
		vm.runtimeError("%s", err.Error())
		return false
	}
	vm.stack = vm.stack[:len(vm.stack)-argc-1]
	vm.push(result)
	return true
}

// instantiate implements class construction: an Instance is allocated and
// placed at the callee's stack slot, then its "init" method (if any) runs
// against that same slot as the receiver.
func (vm *VM) instantiate(class *object.Class, argc int) bool {
	instance := vm.heap.NewInstance(class)
	vm.stack[len(vm.stack)-argc-1] = instance
	if init, ok := class.Methods.Get(vm.initString); ok {
		return vm.call(init.(*object.Closure), argc)
	}
	if argc != 0 {
		vm.runtimeError("Expected 0 arguments but got %d.", argc)
		return false
	}
	return true
}

// invokeAt executes OP_INVOKE <name> <argc>: the receiver at stack[-argc-1]
// is checked for a field named name first (called as a plain callable if
// present, so a field shadows a method); otherwise name is looked up in the
// receiver's class and called as a method.
func (vm *VM) invokeAt(nameIdx uint32) bool {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)
	argc := int(fr.readByte())

	receiver := vm.peek(argc)
	instance, ok := receiver.(*object.Instance)
	if !ok {
		vm.runtimeError("Only instances have methods.")
		return false
	}
	if field, ok := instance.Fields.Get(name); ok {
		vm.stack[len(vm.stack)-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(instance.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *object.Class, name *value.String, argc int) bool {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	return vm.call(methodVal.(*object.Closure), argc)
}

// superInvokeAt executes OP_SUPER_INVOKE <name> <argc>: identical to
// invokeAt except the method is looked up directly in the explicitly pushed
// superclass, never in the receiver's own (dynamic) class.
func (vm *VM) superInvokeAt(nameIdx uint32) bool {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)
	argc := int(fr.readByte())

	super, ok := vm.pop().(*object.Class)
	if !ok {
		vm.runtimeError("Superclass must be a class.")
		return false
	}
	return vm.invokeFromClass(super, name, argc)
}

// getProperty implements OP_GET_PROPERTY: field access first, falling back
// to a bound method.
func (vm *VM) getProperty(nameIdx uint32) bool {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)

	instance, ok := vm.peek(0).(*object.Instance)
	if !ok {
		vm.runtimeError("Only instances have properties.")
		return false
	}
	if v, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(v)
		return true
	}
	return vm.bindMethod(instance.Class, name)
}

func (vm *VM) setProperty(nameIdx uint32) bool {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)

	instance, ok := vm.peek(1).(*object.Instance)
	if !ok {
		vm.runtimeError("Only instances have fields.")
		return false
	}
	v := vm.peek(0)
	instance.Fields.Set(name, v)
	vm.pop()
	vm.pop()
	vm.push(v)
	return true
}

func (vm *VM) getSuper(nameIdx uint32) bool {
	fr := &vm.frames[len(vm.frames)-1]
	name := fr.closure.Function.Chunk.Constants[nameIdx].(*value.String)

	super, ok := vm.pop().(*object.Class)
	if !ok {
		vm.runtimeError("Superclass must be a class.")
		return false
	}
	return vm.bindMethod(super, name)
}

// bindMethod looks up name in class's method table and, on success, replaces
// the receiver at the top of the stack with a BoundMethod pairing it with
// the found closure.
func (vm *VM) bindMethod(class *object.Class, name *value.String) bool {
	methodVal, ok := class.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), methodVal.(*object.Closure))
	vm.pop()
	vm.push(bound)
	return true
}

type nativeFailureError struct{}

func (nativeFailureError) Error() string { return "native call failed" }

var errGenericNativeFailure = nativeFailureError{}
