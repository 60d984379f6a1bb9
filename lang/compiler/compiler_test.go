package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/compiler"
	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/value"
)

func compile(t *testing.T, src string) (*value.Chunk, error) {
	t.Helper()
	heap := gc.New(false, 0)
	g := globals.New()
	fn, err := compiler.Compile(src, heap, g)
	if err != nil {
		return nil, err
	}
	return &fn.Chunk, nil
}

func TestCompileSimpleExpressionStatement(t *testing.T) {
	chunk, err := compile(t, `print 1 + 2;`)
	require.NoError(t, err)
	assert.Contains(t, chunk.Code, byte(value.OpAdd))
	assert.Contains(t, chunk.Code, byte(value.OpPrint))
}

func TestCompileReportsSyntaxError(t *testing.T) {
	_, err := compile(t, `var x = ;`)
	require.Error(t, err)
}

func TestCompileImmutableLocalReassignmentIsError(t *testing.T) {
	_, err := compile(t, `{ immut x = 1; x = 2; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable variable")
}

func TestCompileImmutableGlobalReassignmentIsError(t *testing.T) {
	_, err := compile(t, `immut x = 1; x = 2;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable variable")
}

func TestCompileImmutableGlobalRedefinitionIsError(t *testing.T) {
	_, err := compile(t, `immut x = 1; immut x = 2;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redefine immutable global")
}

func TestCompileMutableLocalReassignmentIsOK(t *testing.T) {
	_, err := compile(t, `{ var x = 1; x = 2; }`)
	require.NoError(t, err)
}

// TestCompileConstantTableRollsOverToLongForm forces more than 256 distinct
// number literals in one function so the constant pool must switch from
// OP_CONSTANT's 1-byte index to OP_CONSTANT_LONG's 3-byte index.
func TestCompileConstantTableRollsOverToLongForm(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("print ")
		sb.WriteString("0")
		sb.WriteString(".")
		// vary the literal; a few spellings share a value (0.1 and 0.10) and
		// dedup to one entry, leaving 270 distinct constant-pool entries
		sb.WriteString(itoa(i + 1))
		sb.WriteString(";\n")
	}
	chunk, err := compile(t, sb.String())
	require.NoError(t, err)
	assert.Contains(t, chunk.Code, byte(value.OpConstantLong), "a 300-literal script must emit at least one long-form constant load")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// TestCompileGlobalIndexRollsOverToLongForm declares more than 256 globals
// so definitions past index 255 must use the 3-byte global opcodes.
func TestCompileGlobalIndexRollsOverToLongForm(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("var g")
		sb.WriteString(itoa(i))
		sb.WriteString(" = nil;\n")
	}
	chunk, err := compile(t, sb.String())
	require.NoError(t, err)
	assert.Contains(t, chunk.Code, byte(value.OpDefineGlobalLong))
	assert.Contains(t, chunk.Code, byte(value.OpDefineGlobal), "early globals still use the short form")
}

// TestCompileLargeJumpBodyStillCompiles exercises a long if-body, well
// within the 65535-byte jump range, to make sure jump patching doesn't
// misfire on ordinary-sized input.
func TestCompileLargeJumpBodyStillCompiles(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("if (true) {\n")
	for i := 0; i < 500; i++ {
		sb.WriteString("print 1;\n")
	}
	sb.WriteString("}\n")
	_, err := compile(t, sb.String())
	require.NoError(t, err)
}

func TestCompileClassWithSuperclassEmitsInherit(t *testing.T) {
	chunk, err := compile(t, `
class A { greet() { print "a"; } }
class B < A { greet() { super.greet(); } }
`)
	require.NoError(t, err)
	assert.Contains(t, chunk.Code, byte(value.OpInherit))
}

func TestCompileSelfInheritanceIsError(t *testing.T) {
	_, err := compile(t, `class A < A {}`)
	require.Error(t, err)
}

func TestCompileBreakOutsideLoopIsError(t *testing.T) {
	_, err := compile(t, `break;`)
	require.Error(t, err)
}

func TestCompileReturnFromInitializerWithValueIsError(t *testing.T) {
	_, err := compile(t, `class A { init() { return 1; } }`)
	require.Error(t, err)
}
