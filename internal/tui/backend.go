package tui

import (
	"context"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/history"
)

// Snapshot is everything one dashboard frame shows.
type Snapshot struct {
	Stats   history.Stats
	Changes []change.Record // oldest first
}

// Backend drives a live dashboard. It is implemented over an in-process
// poller by `typetrace watch` and over the daemon API by `typetrace view`.
type Backend interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	// Export writes the current history to disk and returns the file path.
	Export(ctx context.Context) (string, error)
}

// documentSnapshot adapts an export for read-only viewing.
func documentSnapshot(doc *export.Document) Snapshot {
	return Snapshot{Stats: doc.Statistics, Changes: doc.Changes}
}
