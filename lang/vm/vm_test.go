package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/vm"
)

func run(t *testing.T, src string) (string, string, vm.Result) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	heap := gc.New(false, 0)
	g := globals.New()
	m := vm.New(heap, g, &stdout, &stderr)
	res := m.Interpret(src)
	return stdout.String(), stderr.String(), res
}

func TestArithmeticAndPrint(t *testing.T) {
	out, errOut, res := run(t, `print 1 + 2 * 3;`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, errOut, res := run(t, `print "foo" + "bar";`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "foobar\n", out)
}

func TestGlobalAndLocalVariables(t *testing.T) {
	out, errOut, res := run(t, `
var a = 10;
{
  var b = 20;
  print a + b;
}
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "30\n", out)
}

func TestIfElseBranching(t *testing.T) {
	out, _, res := run(t, `
if (1 < 2) { print "yes"; } else { print "no"; }
`)
	require.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, _, res := run(t, `
var i = 0;
var sum = 0;
while (i < 5) {
  sum = sum + i;
  i = i + 1;
}
print sum;
`)
	require.Equal(t, vm.InterpretOK, res)
	assert.Equal(t, "10\n", out)
}

func TestForLoopPerIterationClosureCapture(t *testing.T) {
	out, errOut, res := run(t, `
var closures = "";
fun makeAdders() {
  var result = nil;
  for (var i = 0; i < 3; i = i + 1) {
    fun capture() { return i; }
    if (result == nil) { result = capture; } else { result = capture; }
  }
  return result;
}
var last = makeAdders();
print last();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	// each loop iteration must capture its own binding of i, so the closure
	// created on the final iteration observes the value that iteration saw.
	assert.Equal(t, "2\n", out)
}

func TestFunctionCallAndReturn(t *testing.T) {
	out, errOut, res := run(t, `
fun add(a, b) { return a + b; }
print add(3, 4);
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "7\n", out)
}

func TestClosureCapturesUpvalue(t *testing.T) {
	out, errOut, res := run(t, `
fun makeCounter() {
  var count = 0;
  fun increment() {
    count = count + 1;
    return count;
  }
  return increment;
}
var counter = makeCounter();
print counter();
print counter();
print counter();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClassInstantiationAndMethods(t *testing.T) {
	out, errOut, res := run(t, `
class Greeter {
  init(name) {
    this.name = name;
  }
  greet() {
    print "hello " + this.name;
  }
}
var g = Greeter("world");
g.greet();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "hello world\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	out, errOut, res := run(t, `
class Animal {
  speak() { print "..."; }
}
class Dog < Animal {
  speak() {
    super.speak();
    print "woof";
  }
}
Dog().speak();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "...\nwoof\n", out)
}

func TestSwitchStatementFallsThroughToDefault(t *testing.T) {
	out, errOut, res := run(t, `
var x = 5;
switch (x) {
  case 1: print "one";
  case 5: print "five";
  default: print "other";
}
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	// no break after the matching case, so execution falls through into
	// default just as it would into a following case.
	assert.Equal(t, "five\nother\n", out)
}

func TestSwitchFallthroughStopsAtBreak(t *testing.T) {
	out, errOut, res := run(t, `
var x = 2;
switch (x) {
  case 1: print "one";
  case 2: print "two";
  case 3: print "three"; break;
  case 4: print "four";
}
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "two\nthree\n", out)
}

func TestSwitchNoMatchRunsNothing(t *testing.T) {
	out, errOut, res := run(t, `
switch (99) {
  case 1: print "one";
  case 2: print "two";
}
print "after";
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "after\n", out)
}

func TestStringInterningEquality(t *testing.T) {
	out, errOut, res := run(t, `
var a = "shared";
var b = "shared";
print a == b;
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "true\n", out)
}

func TestRuntimeErrorProducesTraceback(t *testing.T) {
	_, errOut, res := run(t, `
fun inner() {
  return 1 + "2";
}
fun outer() {
  return inner();
}
outer();
`)
	assert.Equal(t, vm.InterpretRuntimeError, res)
	assert.True(t, strings.Contains(errOut, "in inner()"))
	assert.True(t, strings.Contains(errOut, "in outer()"))
	assert.True(t, strings.Contains(errOut, "in script"))
}

func TestUndefinedVariableIsRuntimeError(t *testing.T) {
	_, errOut, res := run(t, `print undefinedThing;`)
	assert.Equal(t, vm.InterpretRuntimeError, res)
	assert.Contains(t, errOut, "Undefined variable")
}

func TestCompileErrorDoesNotRun(t *testing.T) {
	out, _, res := run(t, `var = ;`)
	assert.Equal(t, vm.InterpretCompileError, res)
	assert.Empty(t, out)
}

func TestTernaryIsRightAssociative(t *testing.T) {
	out, errOut, res := run(t, `
print false ? 1 : true ? 2 : 3;
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "2\n", out)
}

func TestForLoopClosureCapturesFirstIteration(t *testing.T) {
	out, errOut, res := run(t, `
var fs = nil;
for (var i = 1; i <= 3; i = i + 1) {
  fun f() { print i; }
  if (fs == nil) fs = f;
}
fs();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "1\n", out)
}

func TestContinueKeepsLoopVariableWrites(t *testing.T) {
	out, errOut, res := run(t, `
for (var i = 0; i < 10; i = i + 1) {
  if (i == 2) {
    i = 7;
    continue;
  }
  print i;
}
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "0\n1\n8\n9\n", out)
}

func TestBreakExitsLoop(t *testing.T) {
	out, errOut, res := run(t, `
var i = 0;
while (true) {
  if (i == 3) break;
  print i;
  i = i + 1;
}
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestStringConcatInternsEqualToLiteral(t *testing.T) {
	out, errOut, res := run(t, `print "ab" + "c" == "abc";`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "true\n", out)
}

func TestVarWithoutInitializerReadsNil(t *testing.T) {
	out, errOut, res := run(t, `var x; print x;`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "nil\n", out)
}

func TestFrameDepthOverflowIsRuntimeError(t *testing.T) {
	_, errOut, res := run(t, `
fun recurse(n) { return recurse(n + 1); }
recurse(0);
`)
	assert.Equal(t, vm.InterpretRuntimeError, res)
	assert.Contains(t, errOut, "Stack overflow.")
}

func TestBoundMethodRemembersReceiver(t *testing.T) {
	out, errOut, res := run(t, `
class Cell {
  init(v) { this.v = v; }
  get() { return this.v; }
}
var m = Cell(42).get;
print m();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "42\n", out)
}

func TestFieldShadowsMethodOnInvoke(t *testing.T) {
	out, errOut, res := run(t, `
class Box {
  label() { return "method"; }
}
fun other() { return "field"; }
var b = Box();
b.label = other;
print b.label();
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "field\n", out)
}

// TestStressGCEndToEnd runs a program that allocates strings, closures,
// classes, instances, and bound methods with a heap that collects on every
// single allocation, so any object left unrooted mid-construction gets swept
// out of the intern table or object list and breaks the output.
func TestStressGCEndToEnd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	heap := gc.New(true, 0)
	g := globals.New()
	m := vm.New(heap, g, &stdout, &stderr)

	res := m.Interpret(`
class Counter {
  init(label) {
    this.label = label;
    this.n = 0;
  }
  bump() {
    this.n = this.n + 1;
    return this.label + "!";
  }
}
var c = Counter("tick");
var bump = c.bump;
var out = "";
for (var i = 0; i < 5; i = i + 1) {
  out = out + bump();
}
print out;
print c.n;
print "tick" + "!" == "tick!";
`)
	require.Equal(t, vm.InterpretOK, res, stderr.String())
	assert.Equal(t, "tick!tick!tick!tick!tick!\n5\ntrue\n", stdout.String())
}

func TestNativeClockAndChrInt(t *testing.T) {
	out, errOut, res := run(t, `
print int(chr(65));
print clock() >= 0;
`)
	require.Equal(t, vm.InterpretOK, res, errOut)
	assert.Equal(t, "65\ntrue\n", out)
}
