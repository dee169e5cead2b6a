package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/source"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func TestPrintChangeAlignsColouredTypes(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = saved }()

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	var lines []string
	for _, typ := range []change.Type{change.Addition, change.Deletion, change.Modification} {
		var buf bytes.Buffer
		printChange(&buf, change.Record{Timestamp: at, ChangeType: typ, ChangeLength: 3, CurrentText: "abc"})
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Fatalf("expected coloured output, got %q", buf.String())
		}
		lines = append(lines, ansi.ReplaceAllString(buf.String(), ""))
	}

	col := strings.Index(lines[0], "len")
	for _, line := range lines[1:] {
		if got := strings.Index(line, "len"); got != col {
			t.Errorf("columns misaligned: %q vs %q", lines[0], line)
		}
	}
}

func TestBuildSourceDegradeToEmpty(t *testing.T) {
	missing := sourceFlags{file: filepath.Join(t.TempDir(), "gone.txt")}

	src, _, err := missing.build(nil, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := src.Text(context.Background()); !errors.Is(err, source.ErrUnavailable) {
		t.Errorf("without degrade a missing file must fail, got %v", err)
	}

	src, desc, err := missing.build(nil, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	text, err := src.Text(context.Background())
	if err != nil || text != "" {
		t.Errorf("with degrade a missing file reads as empty, got %q, %v", text, err)
	}
	if desc != "file:"+missing.file {
		t.Errorf("desc = %q", desc)
	}
}

func TestLogJSONFromConfig(t *testing.T) {
	tmp := isolate(t)
	path := filepath.Join(tmp, "typetrace.log")
	t.Setenv("TYPETRACE_LOG_LEVEL", "info")
	t.Setenv("TYPETRACE_LOG_FILE", path)
	t.Setenv("TYPETRACE_LOG_JSON", "true")

	if _, err := executeCommand(rootCmd, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	logger.Infow("configured", "format", "json")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"configured"`) {
		t.Errorf("expected a JSON log line, got %q", string(data))
	}
}
