package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"github.com/Gawesomer/lox/internal/runconfig"
	"github.com/Gawesomer/lox/lang/compiler"
	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/object"
	"github.com/Gawesomer/lox/lang/vm"
)

// Run compiles and executes the script named by args[0].
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitCodeError{code: mainer.Failure, err: err}
	}

	cfg, err := runconfig.Load()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitCodeError{code: mainer.Failure, err: err}
	}

	heap := gc.New(cfg.GCStress, cfg.InitialHeapBytes)
	if cfg.TraceGC {
		heap.Trace = func(format string, a ...any) { fmt.Fprintf(stdio.Stderr, format+"\n", a...) }
	}
	g := globals.New()
	m := vm.New(heap, g, stdio.Stdout, stdio.Stderr)
	if cfg.TraceExecution {
		m.Trace = func(format string, a ...any) { fmt.Fprintf(stdio.Stderr, format+"\n", a...) }
	}

	fn, cerr := compiler.Compile(string(src), heap, g)
	if cerr != nil {
		fmt.Fprintln(stdio.Stderr, cerr)
		return exitCodeError{code: mainer.ExitCode(65), err: cerr}
	}
	if c.Disassemble {
		disassembleFunction(stdio.Stdout, fn, fn.String())
	}

	switch m.Run(fn) {
	case vm.InterpretOK:
		return nil
	case vm.InterpretRuntimeError:
		return exitCodeError{code: mainer.ExitCode(70), err: fmt.Errorf("runtime error")}
	default:
		return exitCodeError{code: mainer.ExitCode(65), err: fmt.Errorf("compile error")}
	}
}

// disassembleFunction prints every instruction of fn's chunk, recursing
// into any nested Function constants.
func disassembleFunction(w io.Writer, fn *object.Function, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	offset := 0
	for offset < len(fn.Chunk.Code) {
		line, next := fn.Chunk.Disassemble(offset)
		fmt.Fprintln(w, line)
		offset = next
	}
	for _, c := range fn.Chunk.Constants {
		if nested, ok := c.(*object.Function); ok {
			disassembleFunction(w, nested, nested.String())
		}
	}
}
