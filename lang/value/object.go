package value

// ObjKind discriminates the concrete heap object variant.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjNative
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjNative:
		return "native"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "unknown"
	}
}

// Header is embedded by every heap object. It carries the GC mark bit and
// the next-pointer threading every live object into the single intrusive
// list that the collector's sweep phase walks.
type Header struct {
	kind   ObjKind
	Marked bool
	Next   Object
}

func (h *Header) Kind() Kind         { return KindObject }
func (h *Header) ObjKind() ObjKind   { return h.kind }
func (h *Header) GCNext() Object     { return h.Next }
func (h *Header) SetGCNext(o Object) { h.Next = o }
func (h *Header) GCMarked() bool     { return h.Marked }
func (h *Header) SetGCMarked(m bool) { h.Marked = m }

// Object is any heap-allocated value: it satisfies Value (so it can sit on
// the VM stack or in a constant pool) and additionally exposes its GC header
// so the collector can walk and mark it generically, regardless of variant.
type Object interface {
	Value
	ObjKind() ObjKind
	GCNext() Object
	SetGCNext(Object)
	GCMarked() bool
	SetGCMarked(bool)
	String() string
}
