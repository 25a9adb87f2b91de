// Package profiling writes pprof CPU and heap profiles for a serve run,
// enabled with the serve command's --profile-dir flag.
package profiling

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"
)

// Session is one active profiling run: a CPU profile recording from Start
// until Stop, plus a heap snapshot taken at Stop.
type Session struct {
	dir     string
	cpuFile *os.File
	started time.Time
}

// Start begins CPU profiling into dir, which is created if needed. Profile
// filenames carry a timestamp so repeated runs don't clobber each other.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	started := time.Now()
	stamp := started.Format("20060102-150405")

	cpuFile, err := os.Create(filepath.Join(dir, "cpu-"+stamp+".pprof"))
	if err != nil {
		return nil, fmt.Errorf("create cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		cpuFile.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}

	return &Session{dir: dir, cpuFile: cpuFile, started: started}, nil
}

// Stop ends the CPU profile and writes a heap snapshot next to it. Safe to
// call once; the Session is unusable afterwards.
func (s *Session) Stop() error {
	pprof.StopCPUProfile()
	cpuErr := s.cpuFile.Close()

	stamp := s.started.Format("20060102-150405")
	heapFile, err := os.Create(filepath.Join(s.dir, "heap-"+stamp+".pprof"))
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer heapFile.Close()

	runtime.GC() // flush pending frees so the snapshot reflects live memory
	if err := pprof.WriteHeapProfile(heapFile); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return cpuErr
}

// Dir returns the directory profiles are written into.
func (s *Session) Dir() string { return s.dir }
