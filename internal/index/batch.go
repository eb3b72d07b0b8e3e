package index

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dotmd/dotmd/internal/reader"
)

// Lock is an advisory, cross-process exclusive lock over one index
// directory, so two `dotmd index` invocations against the same index never
// interleave writes. Grounded on the teacher's embedding-model download
// lock, which uses the same library for the same reason (serialize
// concurrent processes around a shared on-disk resource).
type Lock struct {
	fl *flock.Flock
}

// NewLock returns a lock keyed by <indexDir>/.dotmd.lock.
func NewLock(indexDir string) *Lock {
	return &Lock{fl: flock.New(filepath.Join(indexDir, ".dotmd.lock"))}
}

// TryLock attempts to acquire the lock without blocking. On success it
// stamps the lock file with this process's PID, so a concurrent `dotmd
// status` can report who's holding it (spec §4 status detail).
func (l *Lock) TryLock() (bool, error) {
	ok, err := l.fl.TryLock()
	if err != nil || !ok {
		return ok, err
	}
	if werr := os.WriteFile(l.fl.Path(), []byte(strconv.Itoa(os.Getpid())), 0o644); werr != nil {
		return true, werr
	}
	return true, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// HolderPID reports whether the lock is currently held by some process
// (this one or another) and, if so, the PID last stamped into the lock
// file. A held lock with an unreadable or missing PID (a lock file from
// before this field existed) reports pid=0.
func (l *Lock) HolderPID() (pid int, locked bool) {
	if l.fl.Locked() {
		return os.Getpid(), true
	}
	acquired, err := l.fl.TryLock()
	if err == nil && acquired {
		l.fl.Unlock()
		return 0, false
	}

	data, err := os.ReadFile(l.fl.Path())
	if err != nil {
		return 0, true
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true
	}
	return pid, true
}

// IndexDirectory discovers every Markdown file under root and indexes it,
// bounding concurrency to workers (0 = NumCPU, spec §5). A single file's
// failure does not abort the batch; its Result carries the error and the
// stage it failed at (spec §4.4).
func (ix *Indexer) IndexDirectory(ctx context.Context, root string, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rdr := reader.New(reader.DefaultOptions())
	discovered, err := rdr.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	// Buffer the whole batch and register every file's title before any
	// extraction starts, so a wikilink from one file in this batch to
	// another file discovered later in the same batch still resolves
	// (spec §4.3, §8 scenario C) instead of depending on discovery order.
	var batch []reader.Result
	var results []Result
	for d := range discovered {
		if d.Err != nil {
			results = append(results, Result{Err: d.Err})
			continue
		}
		if ix.cfg.Resolver != nil {
			ix.cfg.Resolver.Register(d.File.Path, d.File.Title)
		}
		batch = append(batch, d)
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex

	for _, d := range batch {
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context canceled; stop accepting new work
		}
		d := d
		g.Go(func() error {
			defer sem.Release(1)
			r := ix.IndexFile(gctx, d.File, d.Content)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil // per-file failures never abort the batch
		})
	}

	_ = g.Wait()
	return results, nil
}
