package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/value"
)

// fakeHost records every DefineNative call so tests can invoke a registered
// native by name without standing up a full *vm.VM.
type fakeHost struct {
	heap  *gc.Heap
	fns   map[string]object.NativeFn
	arity map[string]int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		heap:  gc.New(false, 0),
		fns:   make(map[string]object.NativeFn),
		arity: make(map[string]int),
	}
}

func (h *fakeHost) Heap() *gc.Heap { return h.heap }

func (h *fakeHost) DefineNative(name string, arity int, fn object.NativeFn) {
	h.fns[name] = fn
	h.arity[name] = arity
}

func (h *fakeHost) call(t *testing.T, name string, argv ...value.Value) value.Value {
	t.Helper()
	fn, ok := h.fns[name]
	require.True(t, ok, "native %s not registered", name)
	var result value.Value
	ok, err := fn(argv, &result)
	require.True(t, ok, "native %s failed: %v", name, err)
	return result
}

func (h *fakeHost) callErr(t *testing.T, name string, argv ...value.Value) error {
	t.Helper()
	fn, ok := h.fns[name]
	require.True(t, ok, "native %s not registered", name)
	var result value.Value
	ok, err := fn(argv, &result)
	require.False(t, ok)
	return err
}

func TestRegisterAllInstallsEveryNative(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)

	for _, name := range []string{"clock", "chr", "int", "hasattr", "getattr", "setattr", "delattr", "readfile", "writefile"} {
		_, ok := h.fns[name]
		assert.True(t, ok, "expected %s to be registered", name)
	}
	assert.Equal(t, 0, h.arity["clock"])
	assert.Equal(t, 1, h.arity["chr"])
	assert.Equal(t, 2, h.arity["hasattr"])
	assert.Equal(t, 3, h.arity["setattr"])
}

func TestClockReturnsNonNegativeNumber(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	v := h.call(t, "clock")
	n, ok := v.(value.Number)
	require.True(t, ok)
	assert.GreaterOrEqual(t, float64(n), 0.0)
}

func TestChrAndIntRoundTrip(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)

	s := h.call(t, "chr", value.Number(65))
	str, ok := s.(*value.String)
	require.True(t, ok)
	assert.Equal(t, "A", str.Chars)

	n := h.call(t, "int", str)
	assert.Equal(t, value.Number(65), n)
}

func TestChrRejectsOutOfRange(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	err := h.callErr(t, "chr", value.Number(256))
	assert.Error(t, err)
}

func TestIntTruncatesNumber(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	v := h.call(t, "int", value.Number(3.9))
	assert.Equal(t, value.Number(3), v)
}

func TestAttrFamilyOnInstance(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)

	className := h.heap.InternString("Point")
	class := h.heap.NewClass(className)
	inst := h.heap.NewInstance(class)
	attrName := h.heap.InternString("x")

	has := h.call(t, "hasattr", inst, attrName)
	assert.Equal(t, value.Bool(false), has)

	set := h.call(t, "setattr", inst, attrName, value.Number(5))
	assert.Equal(t, value.Number(5), set)

	has = h.call(t, "hasattr", inst, attrName)
	assert.Equal(t, value.Bool(true), has)

	got := h.call(t, "getattr", inst, attrName)
	assert.Equal(t, value.Number(5), got)

	deleted := h.call(t, "delattr", inst, attrName)
	assert.Equal(t, value.Bool(true), deleted)

	has = h.call(t, "hasattr", inst, attrName)
	assert.Equal(t, value.Bool(false), has)
}

func TestAttrFamilyRejectsNonInstance(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	attrName := h.heap.InternString("x")
	err := h.callErr(t, "hasattr", value.Number(1), attrName)
	assert.Error(t, err)
}

func TestGetattrMissingAttributeIsError(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	className := h.heap.InternString("Empty")
	class := h.heap.NewClass(className)
	inst := h.heap.NewInstance(class)
	attrName := h.heap.InternString("missing")
	err := h.callErr(t, "getattr", inst, attrName)
	assert.Error(t, err)
}

func TestReadfileWritefileRoundTrip(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)

	dir := t.TempDir()
	path := h.heap.InternString(dir + "/out.txt")
	content := h.heap.InternString("payload")

	ok := h.call(t, "writefile", path, content)
	assert.Equal(t, value.Bool(true), ok)

	got := h.call(t, "readfile", path)
	str, isStr := got.(*value.String)
	require.True(t, isStr)
	assert.Equal(t, "payload", str.Chars)
}

func TestReadfileMissingPathIsError(t *testing.T) {
	h := newFakeHost()
	RegisterAll(h)
	path := h.heap.InternString("/nonexistent/path/does/not/exist")
	err := h.callErr(t, "readfile", path)
	assert.Error(t, err)
}
