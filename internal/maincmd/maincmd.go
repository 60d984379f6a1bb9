// Package maincmd implements cmd/lox's command dispatch: source loading,
// argument parsing, and diagnostic/disassembly formatting policy, kept out
// of the lang packages. A Cmd struct is driven by github.com/mna/mainer's
// flag parser and dispatches to subcommands by reflecting over method names
// that match the "(context.Context, mainer.Stdio, []string) error" shape.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"
)

const binName = "lox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode compiler and virtual machine for the lox scripting language.

The <command> can be one of:
       run <path>                Compile and execute the script at <path>.
       repl                      Start an interactive read-eval-print loop.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --disassemble             Print the compiled bytecode for each chunk
                                 before executing it (run only).
`, binName)
)

// Cmd is the top-level CLI driver: a mainer.Parser target struct with
// `flag:"..."` tags plus a method per subcommand.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help        bool `flag:"h,help"`
	Version     bool `flag:"v,version"`
	Disassemble bool `flag:"disassemble"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}
	commands := buildCmds(c)
	c.cmdFn = commands[c.args[0]]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}
	if c.args[0] == "run" && len(c.args[1:]) != 1 {
		return errors.New("run: exactly one script path must be provided")
	}
	return nil
}

// Main parses args and dispatches to the selected subcommand, returning the
// process exit code. Compile and runtime errors map to the traditional
// sysexits.h codes 65 and 70.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		if ec, ok := err.(exitCodeError); ok {
			return ec.code
		}
		return mainer.Failure
	}
	return mainer.Success
}

// exitCodeError lets a subcommand request a specific process exit code
// (65/70 for compile/runtime errors) without mainer's generic Failure.
type exitCodeError struct {
	code mainer.ExitCode
	err  error
}

func (e exitCodeError) Error() string { return e.err.Error() }

// IsInteractive reports whether f looks like a TTY, deciding whether the
// REPL should print a prompt.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)
	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		fn, ok := vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
		if !ok {
			continue
		}
		name := lowerFirst(m.Name)
		cmds[name] = fn
	}
	return cmds
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
