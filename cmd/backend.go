package cmd

import (
	"context"
	"time"

	"github.com/fakeyudi/typetrace/internal/client"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/tui"
)

// localBackend drives the dashboard from an in-process poller.
type localBackend struct {
	p      *poller.Poller
	format string
}

func (b *localBackend) Snapshot(ctx context.Context) (tui.Snapshot, error) {
	return tui.Snapshot{Stats: b.p.Stats(), Changes: b.p.Changes()}, nil
}

func (b *localBackend) Start(ctx context.Context) error { return b.p.Start(ctx) }

func (b *localBackend) Stop(ctx context.Context) error {
	b.p.Stop()
	return nil
}

func (b *localBackend) Clear(ctx context.Context) error {
	b.p.ClearChanges()
	return nil
}

func (b *localBackend) Export(ctx context.Context) (string, error) {
	now := time.Now()
	doc := export.Build(b.p.Stats(), b.p.Changes(), now)
	doc.Author = author()
	doc.RunID = b.p.RunID()
	data, err := export.RendererFor(b.format).Render(doc)
	if err != nil {
		return "", err
	}
	return writeExport(data, b.format, "", now)
}

// remoteBackend drives the dashboard over the daemon API.
type remoteBackend struct {
	c      *client.Client
	format string
}

func (b *remoteBackend) Snapshot(ctx context.Context) (tui.Snapshot, error) {
	stats, err := b.c.Stats(ctx)
	if err != nil {
		return tui.Snapshot{}, err
	}
	changes, err := b.c.Changes(ctx, -1)
	if err != nil {
		return tui.Snapshot{}, err
	}
	return tui.Snapshot{Stats: stats, Changes: changes}, nil
}

func (b *remoteBackend) Start(ctx context.Context) error {
	_, err := b.c.Start(ctx)
	return err
}

func (b *remoteBackend) Stop(ctx context.Context) error {
	_, err := b.c.Stop(ctx)
	return err
}

func (b *remoteBackend) Clear(ctx context.Context) error {
	_, err := b.c.Clear(ctx)
	return err
}

func (b *remoteBackend) Export(ctx context.Context) (string, error) {
	data, err := b.c.Export(ctx, b.format)
	if err != nil {
		return "", err
	}
	return writeExport(data, b.format, "", time.Now())
}
