package runconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.False(t, c.GCStress)
	assert.Equal(t, int64(1048576), c.InitialHeapBytes)
	assert.False(t, c.TraceExecution)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LOX_GC_STRESS", "true")
	t.Setenv("LOX_INITIAL_HEAP_BYTES", "4096")

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.GCStress)
	assert.Equal(t, int64(4096), c.InitialHeapBytes)
}

func TestConfigFileOverridesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gc_stress: true\ninitial_heap_bytes: 2048\n"), 0o644))

	t.Setenv("LOX_GC_STRESS", "false")
	t.Setenv("LOX_CONFIG", path)

	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.GCStress)
	assert.Equal(t, int64(2048), c.InitialHeapBytes)
}

func TestMissingConfigFileIsError(t *testing.T) {
	t.Setenv("LOX_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
