package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/table"
	"github.com/Gawesomer/lox/lang/value"
)

func TestSetGetDelete(t *testing.T) {
	tb := table.New()
	a := value.NewString("a")

	isNew := tb.Set(a, value.Number(1))
	assert.True(t, isNew)
	isNew = tb.Set(a, value.Number(2))
	assert.False(t, isNew, "re-setting an existing key is not new")

	v, ok := tb.Get(a)
	require.True(t, ok)
	assert.Equal(t, value.Number(2), v)

	assert.True(t, tb.Delete(a))
	_, ok = tb.Get(a)
	assert.False(t, ok)

	assert.False(t, tb.Delete(a), "deleting twice reports not-found")
}

func TestLenExcludesTombstones(t *testing.T) {
	tb := table.New()
	a := value.NewString("a")
	b := value.NewString("b")
	tb.Set(a, value.Number(1))
	tb.Set(b, value.Number(2))
	assert.Equal(t, 2, tb.Len())

	tb.Delete(a)
	assert.Equal(t, 1, tb.Len())

	tb.Set(a, value.Number(3))
	assert.Equal(t, 2, tb.Len(), "re-inserting over a tombstone restores the count")
}

func TestHeavyDeleteReinsertChurnStaysConsistent(t *testing.T) {
	tb := table.New()
	for round := 0; round < 10; round++ {
		for i := 0; i < 50; i++ {
			tb.Set(value.Number(float64(i)), value.Number(float64(round)))
		}
		for i := 0; i < 50; i += 2 {
			tb.Delete(value.Number(float64(i)))
		}
	}
	for i := 1; i < 50; i += 2 {
		v, ok := tb.Get(value.Number(float64(i)))
		require.True(t, ok)
		assert.Equal(t, value.Number(9), v)
	}
	assert.Equal(t, 25, tb.Len())
}

func TestGrowPreservesEntries(t *testing.T) {
	tb := table.New()
	for i := 0; i < 100; i++ {
		tb.Set(value.Number(float64(i)), value.Number(float64(i*i)))
	}
	assert.Equal(t, 100, tb.Len())
	for i := 0; i < 100; i++ {
		v, ok := tb.Get(value.Number(float64(i)))
		require.True(t, ok)
		assert.Equal(t, value.Number(float64(i*i)), v)
	}
}

func TestFindStringWithoutAllocating(t *testing.T) {
	tb := table.New()
	s := value.NewString("hello")
	tb.Set(s, value.Bool(true))

	found := tb.FindString("hello", value.Hash(s))
	require.NotNil(t, found)
	assert.Same(t, s, found)

	assert.Nil(t, tb.FindString("nope", value.Hash(value.NewString("nope"))))
}

func TestTombstoneKeepsProbeChainIntact(t *testing.T) {
	tb := table.New()
	a := value.NewString("a")
	b := value.NewString("b")
	tb.Set(a, value.Number(1))
	tb.Set(b, value.Number(2))

	tb.Delete(a)
	v, ok := tb.Get(b)
	require.True(t, ok, "deleting a should not hide b behind a tombstone")
	assert.Equal(t, value.Number(2), v)
}

func TestAddAll(t *testing.T) {
	x := value.NewString("x")
	y := value.NewString("y")

	src := table.New()
	src.Set(x, value.Number(1))
	src.Set(y, value.Number(2))

	dst := table.New()
	dst.Set(y, value.Number(99))
	dst.AddAll(src)

	vx, _ := dst.Get(x)
	vy, _ := dst.Get(y)
	assert.Equal(t, value.Number(1), vx)
	assert.Equal(t, value.Number(2), vy, "AddAll overwrites existing keys")
}
