package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/source"
)

func sampleExport() *export.Document {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	changes := []change.Record{
		{Timestamp: at, PreviousText: "", CurrentText: "Hello", ChangeType: change.Addition, ChangeLength: 5, CPS: 2.5},
		{Timestamp: at.Add(2 * time.Second), PreviousText: "Hello", CurrentText: "Hell", ChangeType: change.Deletion, ChangeLength: 1, ChangeIndex: 4, CPS: 0.5},
	}
	doc := export.Build(history.Summarize(changes), changes, at.Add(time.Minute))
	doc.Author = "Ada"
	return doc
}

func writeSample(t *testing.T, dir, format string) string {
	t.Helper()
	data, err := export.RendererFor(format).Render(sampleExport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	path := filepath.Join(dir, export.Filename(format, time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestViewPlain(t *testing.T) {
	tmp := isolate(t)

	for _, format := range []string{"json", "markdown"} {
		path := writeSample(t, tmp, format)
		out, err := executeCommand(rootCmd, "view", "--plain", path)
		if err != nil {
			t.Fatalf("%s: view: %v", format, err)
		}
		for _, want := range []string{
			"Author:    Ada",
			"Changes:        2 (1 additions, 1 deletions, 0 modifications)",
			"ADDITION",
			"DELETION",
			"Hell",
			"TOTAL: 2",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("%s: output missing %q:\n%s", format, want, out)
			}
		}
	}
}

func TestViewEmptyExport(t *testing.T) {
	tmp := isolate(t)
	data, err := export.RendererFor("json").Render(export.Build(history.Stats{}, nil, time.Now()))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	path := filepath.Join(tmp, "empty.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := executeCommand(rootCmd, "view", "--plain", path)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(out, "(none)") {
		t.Errorf("expected '(none)' for an empty export, got:\n%s", out)
	}
}

func TestViewRejectsInvalidFiles(t *testing.T) {
	tmp := isolate(t)

	cases := map[string]string{
		"garbage.json":   "{not json",
		"wrongtype.json": `{"exportDate":"2024-01-01T00:00:00Z","statistics":{},"totalChangesRecorded":"many","changes":[]}`,
		"notes.md":       "# Just some notes\n",
	}
	for name, content := range cases {
		path := filepath.Join(tmp, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		_, err := executeCommand(rootCmd, "view", "--plain", path)
		if err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
		if !strings.Contains(err.Error(), "not a valid typetrace export") {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
	}
}

func TestViewFileNotFound(t *testing.T) {
	tmp := isolate(t)
	_, err := executeCommand(rootCmd, "view", "--plain", filepath.Join(tmp, "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("expected file not found error, got: %v", err)
	}
}

func TestViewDaemonPlain(t *testing.T) {
	isolate(t)
	h := history.New(history.DefaultCapacity)
	for _, rec := range sampleExport().Changes {
		h.Append(rec)
	}
	startDaemon(t, &source.Push{}, h)

	out, err := executeCommand(rootCmd, "view", "--plain")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, want := range []string{"Daemon http://127.0.0.1:", "Changes:        2", "DELETION"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview("a\n b\tc"); got != "a b c" {
		t.Errorf("preview flattened = %q", got)
	}
	long := strings.Repeat("x", 30) + strings.Repeat("y", 30)
	got := preview(long)
	if n := len([]rune(got)); n != previewRunes {
		t.Errorf("preview length = %d, want %d", n, previewRunes)
	}
	if !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, "yyy") {
		t.Errorf("preview = %q, want the tail with a leading ellipsis", got)
	}
}
