package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/server"
	"github.com/fakeyudi/typetrace/internal/session"
	"github.com/fakeyudi/typetrace/internal/source"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	return executeCommandContext(context.Background(), root, args...)
}

func executeCommandContext(ctx context.Context, root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err := root.ExecuteContextC(ctx)
	return buf.String(), err
}

// isolate points every typetrace path at a temp dir and resets flag state
// left behind by earlier executions.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", tmp)
	t.Setenv("TYPETRACE_LOG_LEVEL", "error")
	t.Setenv("TYPETRACE_OUTPUT_DIR", tmp)

	plainOutput = false
	exportFormat, exportOutput = "", ""
	watchSource, watchPlain, watchStart, watchFor = sourceFlags{}, false, false, 0
	serveSource, serveAddr, serveStart = sourceFlags{}, "", false
	noColor = true
	return tmp
}

// startDaemon serves a poller over push and records it as the running daemon.
func startDaemon(t *testing.T, push *source.Push, h *history.History) *poller.Poller {
	t.Helper()
	if h == nil {
		h = history.New(history.DefaultCapacity)
	}
	p := poller.New(push, poller.WithInterval(5*time.Millisecond), poller.WithHistory(h))
	t.Cleanup(p.Stop)

	srv := httptest.NewServer(server.New(p, server.WithPush(push)).Handler())
	t.Cleanup(srv.Close)

	store, err := session.NewSessionStore()
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	err = store.Save(&session.Session{
		ID:        "test-daemon",
		StartTime: time.Now().Add(-time.Minute),
		Addr:      strings.TrimPrefix(srv.URL, "http://"),
		Source:    "push",
		PID:       4242,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return p
}

// writeAtomic replaces path in one step so a poll never reads a
// half-written file.
func writeAtomic(t *testing.T, path, text string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		t.Errorf("WriteFile: %v", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Errorf("Rename: %v", err)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
