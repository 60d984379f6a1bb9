// Package gc implements the interpreter's tracing garbage collector: a
// tri-color mark/sweep over the intrusive heap-object list, coordinated with
// the weak string-intern table. It also owns the allocation accounting that
// decides when a collection runs.
//
// The collector is decoupled from lang/vm via the RootProvider interface so
// that lang/compiler (which has a chain of in-progress Functions that must
// stay reachable mid-compile) and lang/vm (stack, frames, globals, open
// upvalues) can each register roots without gc importing either package.
package gc

import (
	"fmt"
	"os"

	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/table"
	"github.com/Gawesomer/lox/lang/value"
)

// RootProvider marks every Value it currently keeps reachable by calling
// mark on each of them. Implementations must not allocate from within
// MarkRoots.
type RootProvider interface {
	MarkRoots(mark func(value.Value))
}

// HeapGrowFactor is the factor by which the next collection threshold grows
// past the live-byte count observed at the end of the current collection.
const HeapGrowFactor = 2

// Heap owns every live object, the weak string-intern table, and the
// allocation counters that decide when to collect.
type Heap struct {
	// Objects is the head of the intrusive list threading every live
	// heap object; sweep iterates this list.
	Objects value.Object

	// Strings interns every live string by content so that byte-equal
	// strings are the same object.
	Strings *table.Table

	BytesAllocated int64
	NextGC         int64
	StressMode     bool // collect on every growth, for testing

	// Trace, if non-nil, receives a begin and an end line of collector
	// diagnostics per collection (disabled by default; wired from
	// internal/runconfig).
	Trace func(format string, args ...any)

	roots        []RootProvider
	compilerRoot RootProvider
	gray         []value.Object
}

// New returns a Heap ready for allocation. initialNextGC sets the first
// collection threshold (in accounted bytes).
func New(stressMode bool, initialNextGC int64) *Heap {
	if initialNextGC <= 0 {
		initialNextGC = 1 << 20
	}
	return &Heap{
		Strings:    table.New(),
		StressMode: stressMode,
		NextGC:     initialNextGC,
	}
}

// RegisterRoots adds r to the set of root providers consulted on every
// collection. Typically called once each by the compiler and the VM.
func (h *Heap) RegisterRoots(r RootProvider) {
	h.roots = append(h.roots, r)
}

// SetCompilerRoot registers the single in-progress compiler as a root for
// the duration of one Compile call; ClearCompilerRoot removes it again.
// Kept separate from RegisterRoots (which is for the VM's whole-lifetime
// registration) so repeated compiles in a REPL session don't accumulate one
// stale RootProvider per call.
func (h *Heap) SetCompilerRoot(r RootProvider) { h.compilerRoot = r }

// ClearCompilerRoot removes the in-progress compiler root set by
// SetCompilerRoot.
func (h *Heap) ClearCompilerRoot() { h.compilerRoot = nil }

// track links o into the intrusive objects list and accounts size bytes. The
// collection check runs before o is linked: o itself cannot be swept
// mid-construction, while everything it will reference must already be
// reachable from a root.
func (h *Heap) track(o value.Object, size int64) {
	h.MaybeCollect()
	o.SetGCNext(h.Objects)
	h.Objects = o
	h.AccountBytes(size)
}

// AccountBytes adjusts the live-byte counter by delta, for growable buffers
// that are not heap objects themselves (the value stack, lang/table's
// entries slice).
func (h *Heap) AccountBytes(delta int64) {
	h.BytesAllocated += delta
}

// MaybeCollect runs a collection if stress mode is on or the allocator has
// crossed its threshold.
func (h *Heap) MaybeCollect() {
	if h.StressMode || h.BytesAllocated > h.NextGC {
		h.Collect()
	}
}

// InternString finds-or-creates the interned String object with content s:
// an existing interned string is returned as-is; otherwise a new String is
// allocated, tracked, and inserted into the intern table.
func (h *Heap) InternString(s string) *value.String {
	hash := value.HashString(s)
	if existing := h.Strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := value.NewString(s)
	h.track(str, int64(len(s))+32)
	h.Strings.Set(str, value.Bool(true))
	return str
}

// NewFunction allocates and tracks a Function object.
func (h *Heap) NewFunction() *object.Function {
	fn := object.NewFunction()
	h.track(fn, 64)
	return fn
}

// NewClosure allocates and tracks a Closure wrapping fn.
func (h *Heap) NewClosure(fn *object.Function) *object.Closure {
	cl := object.NewClosure(fn)
	h.track(cl, int64(32+8*len(cl.Upvalues)))
	return cl
}

// NewUpvalue allocates and tracks an open Upvalue over the stack slot at
// slotIndex.
func (h *Heap) NewUpvalue(slot *value.Value, slotIndex int) *object.Upvalue {
	uv := object.NewUpvalue(slot, slotIndex)
	h.track(uv, 32)
	return uv
}

// NewNative allocates and tracks a Native builtin.
func (h *Heap) NewNative(name string, arity int, fn object.NativeFn) *object.Native {
	n := object.NewNative(name, arity, fn)
	h.track(n, 32)
	return n
}

// NewClass allocates and tracks a Class named by the interned string name.
func (h *Heap) NewClass(name *value.String) *object.Class {
	c := object.NewClass(name)
	h.track(c, 48)
	return c
}

// NewInstance allocates and tracks an Instance of class.
func (h *Heap) NewInstance(class *object.Class) *object.Instance {
	i := object.NewInstance(class)
	h.track(i, 48)
	return i
}

// NewBoundMethod allocates and tracks a BoundMethod.
func (h *Heap) NewBoundMethod(receiver value.Value, method *object.Closure) *object.BoundMethod {
	b := object.NewBoundMethod(receiver, method)
	h.track(b, 24)
	return b
}

// Collect runs one full tri-color mark/sweep cycle:
//  1. mark every registered root;
//  2. trace the gray worklist, blackening each object;
//  3. sweep the weak string-intern table of unmarked entries;
//  4. sweep the objects list, freeing unmarked nodes and clearing mark bits
//     on survivors;
//  5. grow the next collection threshold.
func (h *Heap) Collect() {
	before := h.BytesAllocated
	if h.Trace != nil {
		h.Trace("-- gc begin, %d bytes allocated", before)
	}

	mark := h.mark
	for _, r := range h.roots {
		r.MarkRoots(mark)
	}
	if h.compilerRoot != nil {
		h.compilerRoot.MarkRoots(mark)
	}
	h.traceReferences()
	h.sweepStrings()
	h.sweepObjects()

	h.NextGC = h.BytesAllocated * HeapGrowFactor
	if h.NextGC <= 0 {
		h.NextGC = 1 << 20
	}
	if h.Trace != nil {
		h.Trace("-- gc end, %d -> %d bytes, next at %d", before, h.BytesAllocated, h.NextGC)
	}
}

// mark is the root/child marking primitive: non-object values are ignored;
// an already-marked object is skipped (cycle safety); a newly-marked object
// is pushed onto the gray worklist for later tracing.
func (h *Heap) mark(v value.Value) {
	obj, ok := v.(value.Object)
	if !ok || obj == nil {
		return
	}
	if obj.GCMarked() {
		return
	}
	obj.SetGCMarked(true)
	h.gray = append(h.gray, obj)
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		n := len(h.gray) - 1
		obj := h.gray[n]
		h.gray = h.gray[:n]
		h.blacken(obj)
	}
}

// blacken marks every value reachable from obj's own fields.
func (h *Heap) blacken(obj value.Object) {
	switch o := obj.(type) {
	case *value.String:
		// no children
	case *object.Upvalue:
		h.mark(o.Closed)
	case *object.Function:
		if o.Name != nil {
			h.mark(o.Name)
		}
		for _, c := range o.Chunk.Constants {
			h.mark(c)
		}
	case *object.Closure:
		h.mark(o.Function)
		for _, uv := range o.Upvalues {
			if uv != nil {
				h.mark(uv)
			}
		}
	case *object.Native:
		// no children
	case *object.Class:
		h.mark(o.Name)
		o.Methods.Iterate(func(k, v value.Value) bool {
			h.mark(k)
			h.mark(v)
			return true
		})
	case *object.Instance:
		h.mark(o.Class)
		o.Fields.Iterate(func(k, v value.Value) bool {
			h.mark(k)
			h.mark(v)
			return true
		})
	case *object.BoundMethod:
		h.mark(o.Receiver)
		h.mark(o.Method)
	default:
		panic(fmt.Sprintf("gc: unhandled object kind %v", obj.ObjKind()))
	}
}

// sweepStrings deletes intern-table entries whose key is no longer marked,
// before the objects sweep frees them: the intern table holds its keys
// weakly.
func (h *Heap) sweepStrings() {
	var dead []*value.String
	h.Strings.Iterate(func(k, _ value.Value) bool {
		if s, ok := k.(*value.String); ok && !s.GCMarked() {
			dead = append(dead, s)
		}
		return true
	})
	for _, s := range dead {
		h.Strings.Delete(s)
	}
}

// sweepObjects walks the intrusive objects list, unlinking and discarding
// unmarked nodes and clearing the mark bit of survivors.
func (h *Heap) sweepObjects() {
	var prev value.Object
	cur := h.Objects
	for cur != nil {
		if cur.GCMarked() {
			cur.SetGCMarked(false)
			prev = cur
			cur = cur.GCNext()
			continue
		}
		unreached := cur
		cur = cur.GCNext()
		if prev != nil {
			prev.SetGCNext(cur)
		} else {
			h.Objects = cur
		}
		h.BytesAllocated -= objectSize(unreached)
	}
}

// objectSize is a rough accounting figure for sweep bookkeeping; it mirrors
// the estimate used at allocation time in the New* constructors above.
func objectSize(o value.Object) int64 {
	switch v := o.(type) {
	case *value.String:
		return int64(len(v.Chars)) + 32
	case *object.Closure:
		return int64(32 + 8*len(v.Upvalues))
	case *object.Instance:
		return 48
	case *object.Class:
		return 48
	case *object.BoundMethod:
		return 24
	case *object.Upvalue:
		return 32
	case *object.Native:
		return 32
	case *object.Function:
		return 64
	default:
		return 16
	}
}

// DebugDump writes the live-object count and accounted bytes to stderr, as a
// debugging aid; nothing in cmd/lox or the test suite calls it.
func (h *Heap) DebugDump() {
	n := 0
	for o := h.Objects; o != nil; o = o.GCNext() {
		n++
	}
	fmt.Fprintf(os.Stderr, "heap: %d live objects, %d bytes\n", n, h.BytesAllocated)
}
