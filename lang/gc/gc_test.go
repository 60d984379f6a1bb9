package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/value"
)

// fakeRoot is a RootProvider controlled directly by a test, standing in for
// lang/vm's stack/frame/global roots.
type fakeRoot struct {
	values []value.Value
}

func (r *fakeRoot) MarkRoots(mark func(value.Value)) {
	for _, v := range r.values {
		mark(v)
	}
}

func TestInternStringDeduplicates(t *testing.T) {
	h := gc.New(false, 0)
	a := h.InternString("hello")
	b := h.InternString("hello")
	assert.Same(t, a, b, "equal content must intern to the same object")

	c := h.InternString("world")
	assert.NotSame(t, a, c)
}

func TestCollectFreesUnreachableStrings(t *testing.T) {
	h := gc.New(false, 0)
	root := &fakeRoot{}
	h.RegisterRoots(root)

	kept := h.InternString("kept")
	_ = h.InternString("garbage")
	root.values = []value.Value{kept}

	h.Collect()

	assert.Same(t, kept, h.InternString("kept"), "reachable string survives and stays interned")

	found := h.Strings.FindString("garbage", value.Hash(value.NewString("garbage")))
	assert.Nil(t, found, "unreachable string must be swept from the intern table")
}

func TestCollectKeepsTransitivelyReachableObjects(t *testing.T) {
	h := gc.New(false, 0)
	root := &fakeRoot{}
	h.RegisterRoots(root)

	name := h.InternString("Pair")
	class := h.NewClass(name)
	inst := h.NewInstance(class)
	fieldName := h.InternString("value")
	fieldVal := h.InternString("held")
	inst.Fields.Set(fieldName, fieldVal)

	root.values = []value.Value{inst}
	h.Collect()

	v, ok := inst.Fields.Get(fieldName)
	require.True(t, ok)
	assert.Same(t, fieldVal, v)
	assert.False(t, fieldVal.GCMarked(), "mark bit is cleared again after sweep")
}

func TestCollectFreesObjectsWithNoRoot(t *testing.T) {
	h := gc.New(false, 0)
	root := &fakeRoot{}
	h.RegisterRoots(root)

	name := h.InternString("Orphan")
	h.NewClass(name)
	before := h.BytesAllocated

	root.values = nil
	h.Collect()

	assert.Less(t, h.BytesAllocated, before, "unreachable class and its name should be swept")
}

func TestStressModeCollectsOnEveryGrowth(t *testing.T) {
	h := gc.New(true, 0)
	root := &fakeRoot{}
	h.RegisterRoots(root)

	kept := h.InternString("kept")
	root.values = []value.Value{kept}

	for i := 0; i < 50; i++ {
		h.AccountBytes(1)
		h.MaybeCollect()
	}

	assert.Same(t, kept, h.InternString("kept"))
}

func TestNextGCGrowsAfterCollection(t *testing.T) {
	h := gc.New(false, 64)
	root := &fakeRoot{}
	h.RegisterRoots(root)

	h.Collect()
	assert.Greater(t, h.NextGC, int64(64))
}
