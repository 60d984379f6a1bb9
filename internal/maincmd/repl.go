package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/Gawesomer/lox/internal/runconfig"
	"github.com/Gawesomer/lox/lang/gc"
	"github.com/Gawesomer/lox/lang/globals"
	"github.com/Gawesomer/lox/lang/vm"
)

// Repl runs a line-buffered read-eval-print loop, one Interpret call per
// line, against a single persistent VM so definitions carry across lines.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := runconfig.Load()
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return exitCodeError{code: mainer.Failure, err: err}
	}

	heap := gc.New(cfg.GCStress, cfg.InitialHeapBytes)
	g := globals.New()
	m := vm.New(heap, g, stdio.Stdout, stdio.Stderr)

	prompt := IsInteractive(os.Stdin)
	scanner := bufio.NewScanner(stdio.Stdin)
	for {
		if prompt {
			fmt.Fprint(stdio.Stdout, "> ")
		}
		if !scanner.Scan() {
			return nil
		}
		m.Interpret(scanner.Text())
	}
}
