// Package runconfig loads the process-wide interpreter tunables: GC stress
// mode, the initial collection threshold, and the execution/collection
// trace switches. Values come from LOX_-prefixed environment variables; a
// YAML file named by LOX_CONFIG may override the environment, for setups
// where exporting several variables is awkward.
package runconfig

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable cmd/lox exposes via environment variables,
// prefixed LOX_ (e.g. LOX_GC_STRESS=1), or via the YAML file named by
// LOX_CONFIG.
type Config struct {
	// GCStress collects on every allocation instead of only past the next
	// threshold.
	GCStress bool `env:"LOX_GC_STRESS" envDefault:"false" yaml:"gc_stress"`

	// InitialHeapBytes sets the first collection threshold, in accounted
	// bytes.
	InitialHeapBytes int64 `env:"LOX_INITIAL_HEAP_BYTES" envDefault:"1048576" yaml:"initial_heap_bytes"`

	// TraceExecution, when true, logs one line per dispatched instruction
	// via the hook cmd/lox wires into lang/vm.VM.Trace.
	TraceExecution bool `env:"LOX_TRACE_EXECUTION" envDefault:"false" yaml:"trace_execution"`

	// TraceGC logs a begin and an end line for each garbage collection
	// cycle.
	TraceGC bool `env:"LOX_TRACE_GC" envDefault:"false" yaml:"trace_gc"`

	// ConfigFile, when set, names a YAML file whose values override the
	// environment for the fields above.
	ConfigFile string `env:"LOX_CONFIG" yaml:"-"`
}

// Load parses Config from the process environment, then applies the YAML
// override file if one is configured.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	if c.ConfigFile != "" {
		b, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("runconfig: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("runconfig: parsing %s: %w", c.ConfigFile, err)
		}
	}
	return c, nil
}
