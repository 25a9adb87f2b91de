package profiling

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopWritesCPUAndHeapProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")

	s, err := Start(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	// Burn a little CPU so the profile isn't empty.
	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum

	require.NoError(t, s.Stop())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var haveCPU, haveHeap bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "cpu-") {
			haveCPU = true
		}
		if strings.HasPrefix(e.Name(), "heap-") {
			haveHeap = true
		}
	}
	assert.True(t, haveCPU, "expected a cpu-*.pprof file")
	assert.True(t, haveHeap, "expected a heap-*.pprof file")
}

func TestStartFailsOnUnwritableDir(t *testing.T) {
	parent := t.TempDir()
	require.NoError(t, os.Chmod(parent, 0o555))
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	_, err := Start(filepath.Join(parent, "profiles"))
	assert.Error(t, err)
}
