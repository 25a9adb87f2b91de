package httpapi

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchIndexDebouncesRenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index")

	var calls int32
	reload := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := watchIndex(ctx, indexPath, reload, slog.Default())
	require.NoError(t, err)
	defer watcher.Close()

	// Ingestion's write-then-rename pattern fires several events for one
	// logical update; they should collapse into a single reload.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(indexPath+".tmp", []byte("x"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, os.Rename(indexPath+".tmp", indexPath))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// No further reload fires from just waiting.
	time.Sleep(debounceWindow + 200*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatchIndexIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index")

	var calls int32
	reload := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, err := watchIndex(ctx, indexPath, reload, slog.Default())
	require.NoError(t, err)
	defer watcher.Close()

	// articles.db churn in the same directory must not trigger a reload.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "articles.db"), []byte("x"), 0o644))
	time.Sleep(debounceWindow + 300*time.Millisecond)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestWatchIndexMissingDirErrors(t *testing.T) {
	reload := func(ctx context.Context) error { return nil }

	_, err := watchIndex(context.Background(), filepath.Join(t.TempDir(), "nope", "index"), reload, slog.Default())

	assert.Error(t, err)
}
