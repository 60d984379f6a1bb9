// Package object implements the heap object variants that sit above the
// base value/Object plumbing and need the hash table: functions, closures,
// upvalues, natives, classes, instances, and bound methods.
//
// Split out from lang/value because Class and Instance hold a lang/table
// method/field table, and lang/table itself depends on lang/value — keeping
// them in lang/value would be a dependency cycle.
package object

import (
	"fmt"

	"github.com/Gawesomer/lox/lang/table"
	"github.com/Gawesomer/lox/lang/value"
)

// Function is a compiled function: its arity, how many upvalues its closures
// capture, its name (nil for the implicit top-level script), and its chunk.
type Function struct {
	value.Header
	Arity        int
	UpvalueCount int
	Name         *value.String // nil for the top-level script
	Chunk        value.Chunk
}

var _ value.Object = (*Function)(nil)

func NewFunction() *Function {
	return &Function{Header: value.Header{}}
}

func (f *Function) ObjKind() value.ObjKind { return value.ObjFunction }

// CountUpvalues satisfies lang/value's disassembler probe for skipping an
// OP_CLOSURE instruction's trailing capture pairs.
func (f *Function) CountUpvalues() int { return f.UpvalueCount }
func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// Upvalue is a closure's view of a variable from an enclosing scope: open
// while that scope is live (Location points into the operand stack), closed
// once the scope exits (Location is redirected to &Closed).
type Upvalue struct {
	value.Header
	Location *value.Value
	Closed   value.Value

	// Slot is the operand-stack index Location currently points into, valid
	// only while the upvalue is open. The VM's open-upvalue list is kept
	// sorted by descending Slot so capture/close can do a single linear
	// merge instead of a pointer-address comparison.
	Slot int

	// NextOpen links this upvalue into the VM's open-upvalue list, sorted by
	// descending stack address. Distinct from Header.Next, which threads the
	// GC's all-objects list.
	NextOpen *Upvalue
}

var _ value.Object = (*Upvalue)(nil)

func NewUpvalue(slot *value.Value, slotIndex int) *Upvalue {
	return &Upvalue{Location: slot, Slot: slotIndex}
}

func (u *Upvalue) ObjKind() value.ObjKind { return value.ObjUpvalue }
func (u *Upvalue) String() string         { return "upvalue" }

// Close captures the current value at Location into the upvalue itself and
// redirects Location to point at that inline copy.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// Closure is a runtime function value: a Function plus the upvalues it
// captured at creation time.
type Closure struct {
	value.Header
	Function *Function
	Upvalues []*Upvalue
}

var _ value.Object = (*Closure)(nil)

func NewClosure(fn *Function) *Closure {
	return &Closure{
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCount),
	}
}

func (c *Closure) ObjKind() value.ObjKind { return value.ObjClosure }
func (c *Closure) String() string         { return c.Function.String() }

// NativeFn is the native-callable signature: it receives the argument slice
// and a pointer to the result slot, and returns whether the call succeeded.
// On failure it returns the error the VM surfaces as the runtime-error
// message.
type NativeFn func(argv []value.Value, result *value.Value) (ok bool, err error)

// Native wraps a builtin function with its declared arity.
type Native struct {
	value.Header
	Name  string
	Arity int
	Fn    NativeFn
}

var _ value.Object = (*Native)(nil)

func NewNative(name string, arity int, fn NativeFn) *Native {
	return &Native{Name: name, Arity: arity, Fn: fn}
}

func (n *Native) ObjKind() value.ObjKind { return value.ObjNative }
func (n *Native) String() string         { return fmt.Sprintf("<native fn %s>", n.Name) }

// Class is a class object: its name and a method table mapping name-String
// values to Closure values.
type Class struct {
	value.Header
	Name    *value.String
	Methods *table.Table
}

var _ value.Object = (*Class)(nil)

func NewClass(name *value.String) *Class {
	return &Class{Name: name, Methods: table.New()}
}

func (c *Class) ObjKind() value.ObjKind { return value.ObjClass }
func (c *Class) String() string         { return c.Name.Chars }

// Instance is an instance of a Class: the class pointer plus a field table.
type Instance struct {
	value.Header
	Class  *Class
	Fields *table.Table
}

var _ value.Object = (*Instance)(nil)

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New()}
}

func (i *Instance) ObjKind() value.ObjKind { return value.ObjInstance }
func (i *Instance) String() string         { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// BoundMethod pairs a receiver with the Closure it was looked up from, the
// value produced by a property access that resolves to a method.
type BoundMethod struct {
	value.Header
	Receiver value.Value
	Method   *Closure
}

var _ value.Object = (*BoundMethod)(nil)

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{Receiver: receiver, Method: method}
}

func (b *BoundMethod) ObjKind() value.ObjKind { return value.ObjBoundMethod }
func (b *BoundMethod) String() string         { return b.Method.String() }
