// Package export builds, renders and parses the artifact written when a
// user exports the recorded changes.
package export

import (
	"fmt"
	"time"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/history"
)

// Document is the complete, renderable export of a history.
type Document struct {
	ExportDate           time.Time       `json:"exportDate"`
	Statistics           history.Stats   `json:"statistics"`
	TotalChangesRecorded int             `json:"totalChangesRecorded"`
	Changes              []change.Record `json:"changes"`
	Author               string          `json:"author,omitempty"`
	RunID                string          `json:"runId,omitempty"`
}

// Build assembles a Document from a history snapshot. Changes is never nil
// so the JSON form always carries an array.
func Build(stats history.Stats, changes []change.Record, at time.Time) *Document {
	if changes == nil {
		changes = []change.Record{}
	}
	return &Document{
		ExportDate:           at,
		Statistics:           stats,
		TotalChangesRecorded: len(changes),
		Changes:              changes,
	}
}

// Filename returns the default file name for a document exported at t in
// the given format ("json" or "markdown").
func Filename(format string, t time.Time) string {
	ext := "json"
	if format == "markdown" {
		ext = "md"
	}
	return fmt.Sprintf("typetrace-data-%s.%s", t.UTC().Format("2006-01-02T15-04-05Z"), ext)
}

// RendererFor returns the renderer for format, defaulting to JSON.
func RendererFor(format string) Renderer {
	if format == "markdown" {
		return &MarkdownRenderer{}
	}
	return &JSONRenderer{}
}
