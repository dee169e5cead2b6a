package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fakeyudi/typetrace/internal/client"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/session"
	"github.com/fakeyudi/typetrace/internal/source"
)

// requestTimeout bounds a single CLI call to the daemon.
const requestTimeout = 10 * time.Second

// errNoDaemon is returned by client verbs when no daemon state exists.
var errNoDaemon = errors.New("no running typetrace daemon (start one with 'typetrace serve')")

// daemonClient resolves the running daemon from its state file.
func daemonClient() (*client.Client, *session.Session, error) {
	store, err := session.NewSessionStore()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil, nil, errNoDaemon
	}
	if err != nil {
		return nil, nil, err
	}
	c, err := clientFor(s)
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}

func clientFor(s *session.Session) (*client.Client, error) {
	return client.New(s.BaseURL(), nil)
}

// sourceFlags selects where a poller reads the document from.
type sourceFlags struct {
	file string
	exec string
}

// build assembles the configured sources. push, when non-nil, is tried
// last. With degrade, a cycle where every source fails reads as empty
// text. The returned description is recorded in the daemon state file.
func (f sourceFlags) build(push *source.Push, degrade bool) (source.Source, string, error) {
	var (
		list []source.Source
		desc []string
	)
	if f.file != "" {
		list = append(list, &source.File{Path: f.file})
		desc = append(desc, "file:"+f.file)
	}
	if fields := strings.Fields(f.exec); len(fields) > 0 {
		list = append(list, &source.Command{Name: fields[0], Args: fields[1:]})
		desc = append(desc, "exec:"+fields[0])
	}
	if push != nil {
		list = append(list, push)
		desc = append(desc, "push")
	}

	switch {
	case len(list) == 0:
		return nil, "", errors.New("no document source: pass --file or --exec")
	case len(list) == 1 && !degrade:
		return list[0], desc[0], nil
	}
	return &source.Chain{Sources: list, DegradeToEmpty: degrade}, strings.Join(desc, ","), nil
}

// fileWaitTimeout bounds how long a missing --file is waited for.
const fileWaitTimeout = 10 * time.Second

// awaitSource blocks until the document host answers, first waiting for a
// missing --file to appear.
func awaitSource(ctx context.Context, f sourceFlags, src source.Source) error {
	if f.file != "" {
		wctx, cancel := context.WithTimeout(ctx, fileWaitTimeout)
		err := source.WaitFile(wctx, f.file)
		cancel()
		if err != nil && ctx.Err() == nil && f.exec == "" {
			return fmt.Errorf("waiting for %s: %w", f.file, err)
		}
	}
	return source.WaitReady(ctx, src, source.ReadyOptions{})
}

// writeExport stores rendered export data under the configured output
// directory, or at output when it is set, and returns the file path.
func writeExport(data []byte, format, output string, at time.Time) (string, error) {
	path := output
	if path == "" {
		dir := cfg.OutputDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, export.Filename(format, at))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

// normalizeFormat maps user input to an export format, falling back to the
// configured default.
func normalizeFormat(format string) (string, error) {
	if format == "" {
		format = cfg.DefaultFormat
	}
	switch strings.ToLower(format) {
	case "", "json":
		return "json", nil
	case "markdown", "md":
		return "markdown", nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or markdown)", format)
}
