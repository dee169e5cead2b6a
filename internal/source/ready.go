package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Readiness defaults: 20 probes half a second apart.
const (
	DefaultReadyAttempts = 20
	DefaultReadyInterval = 500 * time.Millisecond
)

// ReadyOptions bounds WaitReady.
type ReadyOptions struct {
	Attempts int
	Interval time.Duration
}

// WaitReady probes p until it succeeds, the attempts are exhausted, or ctx
// is done. Sources that are not Probers are ready immediately.
func WaitReady(ctx context.Context, src Source, opts ReadyOptions) error {
	p, ok := src.(Prober)
	if !ok {
		return nil
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultReadyAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultReadyInterval
	}

	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err = p.Probe(ctx); err == nil {
			return nil
		}
		if attempt == opts.Attempts {
			break
		}
		t := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("not ready after %d attempts: %w", opts.Attempts, err)
}

// WaitFile blocks until path exists as a regular file or ctx is done. It
// watches the parent directory so a newly created document is noticed
// without polling.
func WaitFile(ctx context.Context, path string) error {
	if ok, err := isFile(path); err != nil || ok {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// The file may have appeared between the first check and Add.
	if ok, err := isFile(path); err != nil || ok {
		return err
	}

	want := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", path, errors.Join(ErrUnavailable, ctx.Err()))

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("%s: %w", path, ErrUnavailable)
			}
			if filepath.Clean(event.Name) != want {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				if ok, err := isFile(path); err != nil || ok {
					return err
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("%s: %w", path, ErrUnavailable)
			}
			// Watcher errors are non-fatal; keep waiting.
		}
	}
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
