package value

// String is an immutable byte sequence, interned so that byte-equal strings
// share a single object. NewString does not itself intern;
// callers allocate through lang/gc.Heap.InternString, which performs the
// find-or-create dance against the global intern table.
type String struct {
	Header
	Chars string
	Hash  uint32
}

var (
	_ Object = (*String)(nil)
)

// NewString constructs an un-interned string object. Exported for use by
// lang/gc, which owns interning; other packages should go through the heap.
func NewString(s string) *String {
	return &String{
		Header: Header{kind: ObjString},
		Chars:  s,
		Hash:   fnv1a32([]byte(s)),
	}
}

func (s *String) String() string { return s.Chars }
