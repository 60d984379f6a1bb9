// Package natives implements the built-in native functions: clock, chr,
// int, hasattr, getattr, setattr, delattr, readfile, writefile. Each native
// validates its own argument types (arity is pre-checked generically by
// lang/vm's call-value dispatch) and reports failure by returning a non-nil
// error, which the VM surfaces as the runtime error message.
package natives

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/value"
)

// Host is the subset of *vm.VM the native registry needs: a place to
// allocate strings through (so results intern the same way compiled string
// literals do) and a way to install a native under a global name.
type Host interface {
	Heap() *gc.Heap
	DefineNative(name string, arity int, fn object.NativeFn)
}

var start = time.Now()

// RegisterAll installs every built-in native into host. chr and readfile
// intern their string results through host's heap, the same way compiled
// string literals are interned.
func RegisterAll(host Host) {
	heap := host.Heap()
	host.DefineNative("clock", 0, clock)
	host.DefineNative("chr", 1, func(argv []value.Value, result *value.Value) (bool, error) {
		return chrWith(heap, argv, result)
	})
	host.DefineNative("int", 1, intFn)
	host.DefineNative("hasattr", 2, hasattr)
	host.DefineNative("getattr", 2, getattr)
	host.DefineNative("setattr", 3, setattr)
	host.DefineNative("delattr", 2, delattr)
	host.DefineNative("readfile", 1, func(argv []value.Value, result *value.Value) (bool, error) {
		return readfileWith(heap, argv, result)
	})
	host.DefineNative("writefile", 2, writefile)
}

func argError(name, want string) error {
	return fmt.Errorf("%s() expects %s.", name, want)
}

func clock(argv []value.Value, result *value.Value) (bool, error) {
	*result = value.Number(time.Since(start).Seconds())
	return true, nil
}

// chrWith converts an integer code point in [0,255] to its single-byte
// string, interned through heap like any other string value.
func chrWith(heap *gc.Heap, argv []value.Value, result *value.Value) (bool, error) {
	n, ok := argv[0].(value.Number)
	if !ok {
		return false, argError("chr", "a number argument")
	}
	code := int(n)
	if float64(code) != float64(n) || code < 0 || code > 255 {
		return false, fmt.Errorf("chr() argument must be an integer in [0, 255].")
	}
	*result = heap.InternString(string([]byte{byte(code)}))
	return true, nil
}

// intFn converts a number (truncating toward zero) or a single-character
// string (its byte value) to a Number, the inverse of chr for single-byte
// strings.
func intFn(argv []value.Value, result *value.Value) (bool, error) {
	switch v := argv[0].(type) {
	case value.Number:
		*result = value.Number(math.Trunc(float64(v)))
		return true, nil
	case *value.String:
		if len(v.Chars) != 1 {
			return false, fmt.Errorf("int() string argument must be exactly one character.")
		}
		*result = value.Number(v.Chars[0])
		return true, nil
	default:
		return false, argError("int", "a number or single-character string")
	}
}

func asInstance(name string, v value.Value) (*object.Instance, error) {
	inst, ok := v.(*object.Instance)
	if !ok {
		return nil, argError(name, "an instance as its first argument")
	}
	return inst, nil
}

func asName(name string, v value.Value) (*value.String, error) {
	s, ok := v.(*value.String)
	if !ok {
		return nil, argError(name, "a string attribute name")
	}
	return s, nil
}

func hasattr(argv []value.Value, result *value.Value) (bool, error) {
	inst, err := asInstance("hasattr", argv[0])
	if err != nil {
		return false, err
	}
	name, err := asName("hasattr", argv[1])
	if err != nil {
		return false, err
	}
	_, inFields := inst.Fields.Get(name)
	_, inMethods := inst.Class.Methods.Get(name)
	*result = value.Bool(inFields || inMethods)
	return true, nil
}

func getattr(argv []value.Value, result *value.Value) (bool, error) {
	inst, err := asInstance("getattr", argv[0])
	if err != nil {
		return false, err
	}
	name, err := asName("getattr", argv[1])
	if err != nil {
		return false, err
	}
	if v, ok := inst.Fields.Get(name); ok {
		*result = v
		return true, nil
	}
	if v, ok := inst.Class.Methods.Get(name); ok {
		*result = v
		return true, nil
	}
	return false, fmt.Errorf("'%s' instance has no attribute '%s'.", inst.Class.Name.Chars, name.Chars)
}

func setattr(argv []value.Value, result *value.Value) (bool, error) {
	inst, err := asInstance("setattr", argv[0])
	if err != nil {
		return false, err
	}
	name, err := asName("setattr", argv[1])
	if err != nil {
		return false, err
	}
	inst.Fields.Set(name, argv[2])
	*result = argv[2]
	return true, nil
}

func delattr(argv []value.Value, result *value.Value) (bool, error) {
	inst, err := asInstance("delattr", argv[0])
	if err != nil {
		return false, err
	}
	name, err := asName("delattr", argv[1])
	if err != nil {
		return false, err
	}
	*result = value.Bool(inst.Fields.Delete(name))
	return true, nil
}

func readfileWith(heap *gc.Heap, argv []value.Value, result *value.Value) (bool, error) {
	path, ok := argv[0].(*value.String)
	if !ok {
		return false, argError("readfile", "a string path")
	}
	data, err := os.ReadFile(path.Chars)
	if err != nil {
		return false, fmt.Errorf("readfile(): %w", err)
	}
	*result = heap.InternString(string(data))
	return true, nil
}

func writefile(argv []value.Value, result *value.Value) (bool, error) {
	path, ok := argv[0].(*value.String)
	if !ok {
		return false, argError("writefile", "a string path")
	}
	content, ok := argv[1].(*value.String)
	if !ok {
		return false, argError("writefile", "a string content argument")
	}
	if err := os.WriteFile(path.Chars, []byte(content.Chars), 0o644); err != nil {
		return false, fmt.Errorf("writefile(): %w", err)
	}
	*result = value.Bool(true)
	return true, nil
}
