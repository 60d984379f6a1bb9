// Package vm implements the call-frame-driven bytecode dispatch loop: the
// operand stack, the bounded call-frame stack, upvalue capture/close,
// class/instance/method dispatch, and the three-valued Interpret entry
// point. The loop is a single switch over opcodes with a cached frame
// variable, refreshed whenever the frame stack changes.
package vm

import (
	"fmt"
	"io"

	"github.com/Gawesomer/lox/lang/compiler"
	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/natives"
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/value"
)

// Result is the three-valued outcome of Interpret.
type Result int

const (
	InterpretOK Result = iota
	InterpretCompileError
	InterpretRuntimeError
)

// FramesMax bounds the call-frame stack depth.
const FramesMax = 64

const initialStackCap = 256

// VM is one interpreter's complete state, packaged as an explicit value
// rather than a package-level singleton so a host program may run more than
// one in the same process.
type VM struct {
	stack  []value.Value
	frames []frame

	globals *globals.Globals
	heap    *gc.Heap

	openUpvalues *object.Upvalue
	initString   *value.String

	stdout io.Writer
	stderr io.Writer

	// Trace, when non-nil, receives one line per dispatched instruction
	// (wired from internal/runconfig's trace-execution flag); nil in
	// production use.
	Trace func(format string, args ...any)
}

var _ gc.RootProvider = (*VM)(nil)

// New returns a VM ready to Interpret source, registered as a GC root
// provider on heap and with every required native installed.
func New(heap *gc.Heap, g *globals.Globals, stdout, stderr io.Writer) *VM {
	v := &VM{
		stack:   make([]value.Value, 0, initialStackCap),
		frames:  make([]frame, 0, FramesMax),
		globals: g,
		heap:    heap,
		stdout:  stdout,
		stderr:  stderr,
	}
	v.initString = heap.InternString("init")
	heap.RegisterRoots(v)
	natives.RegisterAll(v)
	return v
}

// Heap exposes the owning heap, for natives that need to allocate (strings,
// etc.) and for the native registry's GC-safe insertion dance.
func (vm *VM) Heap() *gc.Heap { return vm.heap }

// Globals exposes the shared global namespace, for natives/tests that need
// to look up or define names outside of compiled bytecode.
func (vm *VM) Globals() *globals.Globals { return vm.globals }

// Stdout is where OP_PRINT writes.
func (vm *VM) Stdout() io.Writer { return vm.stdout }

// DefineNative installs a native function under name in the global
// namespace. The name-String and the Native object are pushed onto the
// stack as they are allocated, so both stay GC-reachable through any
// collection a later allocation triggers.
func (vm *VM) DefineNative(name string, arity int, fn object.NativeFn) {
	nameStr := vm.heap.InternString(name)
	vm.push(nameStr)
	native := vm.heap.NewNative(name, arity, fn)
	vm.push(native)
	idx, _, err := vm.globals.Resolve(name)
	if err != nil {
		panic(err) // the native registry never exceeds MaxGlobals
	}
	vm.globals.Set(idx, vm.stack[len(vm.stack)-1])
	vm.pop()
	vm.pop()
}

// MarkRoots marks every Value currently reachable from VM-owned state: the
// operand stack, every frame's closure, every open upvalue, every global
// value, and the canonical "init" string.
func (vm *VM) MarkRoots(mark func(value.Value)) {
	for _, v := range vm.stack {
		mark(v)
	}
	for i := range vm.frames {
		mark(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		mark(uv)
	}
	for _, v := range vm.globals.Values {
		mark(v)
	}
	if vm.initString != nil {
		mark(vm.initString)
	}
}

// --- stack -----------------------------------------------------------

// ensureStackCapacity grows the backing array (by doubling) when appending
// n more values would exceed it, fixing up every open upvalue's
// Location pointer to point into the freshly allocated array at the same
// stack slot (open upvalues hold a raw pointer into the stack, which growth
// would otherwise dangle).
func (vm *VM) ensureStackCapacity(n int) {
	if len(vm.stack)+n <= cap(vm.stack) {
		return
	}
	newCap := cap(vm.stack) * 2
	if newCap < len(vm.stack)+n {
		newCap = len(vm.stack) + n
	}
	if newCap == 0 {
		newCap = initialStackCap
	}
	newStack := make([]value.Value, len(vm.stack), newCap)
	copy(newStack, vm.stack)
	vm.stack = newStack
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		uv.Location = &vm.stack[uv.Slot]
	}
}

func (vm *VM) push(v value.Value) {
	vm.ensureStackCapacity(1)
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) resetStack() {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

// --- upvalues ----------------------------------------------------------

// captureUpvalue returns the open upvalue for the stack slot at slotIndex,
// creating one if none exists yet. The open-upvalue list is kept sorted by
// descending Slot, at most one node per slot.
func (vm *VM) captureUpvalue(slotIndex int) *object.Upvalue {
	var prev *object.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot > slotIndex {
		prev = uv
		uv = uv.NextOpen
	}
	if uv != nil && uv.Slot == slotIndex {
		return uv
	}
	created := vm.heap.NewUpvalue(&vm.stack[slotIndex], slotIndex)
	created.NextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above fromSlot.
func (vm *VM) closeUpvalues(fromSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= fromSlot {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.NextOpen
		uv.NextOpen = nil
	}
}

// --- entry point ---------------------------------------------------------

// Interpret compiles and runs source. The VM's state (globals, heap,
// intern table) persists across calls, so a REPL can feed one line at a
// time to the same VM.
func (vm *VM) Interpret(source string) Result {
	fn, err := compiler.Compile(source, vm.heap, vm.globals)
	if err != nil {
		fmt.Fprintln(vm.stderr, err)
		return InterpretCompileError
	}
	return vm.Run(fn)
}

// Run executes an already-compiled top-level script Function. Exported
// (distinct from Interpret) so cmd/lox's -disassemble flag can compile once,
// print the chunk, and only then hand the same Function to the VM.
func (vm *VM) Run(fn *object.Function) Result {
	// fn is unrooted between compile and here; keep it on the stack while the
	// closure allocation may collect.
	vm.push(fn)
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(closure)
	if !vm.call(closure, 0) {
		return InterpretRuntimeError
	}
	return vm.run()
}

func (vm *VM) runtimeError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(vm.stderr, msg)

	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		line := fn.Chunk.GetLine(fr.ip - 1)
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars + "()"
		}
		fmt.Fprintf(vm.stderr, "[line %d] in %s\n", line, name)
	}
	vm.resetStack()
}
