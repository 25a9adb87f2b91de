package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// defaultLockRetry bounds how long Reload waits to acquire the on-disk
// advisory lock before giving up.
const defaultLockRetry = 200 * time.Millisecond

// Handle is the process-wide, swap-only vector store reference: readers
// take a shared lock to search against whatever index is
// currently loaded; reload builds a brand new index from disk and only
// swaps it in once loading succeeds, so a failed reload never disturbs
// in-flight queries against the old handle.
type Handle struct {
	mu      sync.RWMutex
	current *HNSWIndex
	path    string
	loaded  bool

	newIndex func() *HNSWIndex // factory for a fresh, empty index of the right shape
	flock    *flock.Flock      // advisory lock on <path>.lock, held by Reload
}

// NewHandle builds a Handle around an on-disk path. newIndex must return a
// fresh, unloaded *HNSWIndex each time it's called; reload imports the file
// at path into a fresh instance before swapping it in.
func NewHandle(path string, newIndex func() *HNSWIndex) *Handle {
	return &Handle{
		path:     path,
		newIndex: newIndex,
		flock:    flock.New(path + ".lock"),
	}
}

// Search proxies to the currently-loaded index under a shared lock. Returns
// ErrIndexNotLoaded if no successful Reload has happened yet.
func (h *Handle) Search(ctx context.Context, queryText string, limit int) ([]Candidate, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.loaded || h.current == nil {
		return nil, ErrIndexNotLoaded{}
	}
	return h.current.Search(ctx, queryText, limit)
}

// Count proxies to the currently-loaded index, or 0 if unloaded.
func (h *Handle) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.loaded || h.current == nil {
		return 0
	}
	return h.current.Count()
}

// Reload atomically replaces the in-memory handle with a freshly loaded one.
// The previous handle remains valid (and in use by any in-flight query)
// until the new one is fully imported; if loading fails the old handle is
// retained and the error is returned.
func (h *Handle) Reload(ctx context.Context) error {
	locked, err := h.flock.TryLockContext(ctx, defaultLockRetry)
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("index is locked by another writer")
	}
	defer h.flock.Unlock()

	fresh := h.newIndex()
	if err := fresh.Load(h.path); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = fresh
	h.loaded = true
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close releases the currently-loaded index, if any.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		return h.current.Close()
	}
	return nil
}

var _ VectorStore = (*Handle)(nil)
