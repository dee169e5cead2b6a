package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/logging"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/session"
	"github.com/fakeyudi/typetrace/internal/tui"
)

var (
	watchSource sourceFlags
	watchPlain  bool
	watchStart  bool
	watchFor    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Record changes to a document in this process and show them live",
	Long: `Poll a document from --file or --exec and show the recorded changes in
a dashboard. With --plain, or when output is not a terminal, each change
is printed as a line instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchFor)
			defer cancel()
		}

		plain := watchPlain || !isInteractive()
		if !plain && cfg.LogFile == "" {
			// Keep log lines off the dashboard.
			if err := logToDataDir(); err != nil {
				return err
			}
		}

		src, desc, err := watchSource.build(nil, cfg.DegradeToEmpty)
		if err != nil {
			return err
		}
		p := poller.New(src,
			poller.WithInterval(cfg.PollInterval()),
			poller.WithHistory(history.New(cfg.MaxChanges)),
			poller.WithLogger(logger),
		)
		defer p.Stop()

		if plain {
			return watchPlainLoop(ctx, cmd.OutOrStdout(), p)
		}

		format, err := normalizeFormat("")
		if err != nil {
			return err
		}
		if watchStart || (activeProfile != nil && activeProfile.AutoStart) {
			go func() {
				if err := awaitSource(ctx, watchSource, src); err != nil {
					logger.Warnw("document host not ready, logging not started", "error", err)
					return
				}
				if err := p.Start(ctx); err != nil {
					logger.Warnw("auto-start failed", "error", err)
				}
			}()
		}
		return tui.Run(&localBackend{p: p, format: format}, desc, cfg.RefreshInterval())
	},
}

func logToDataDir() error {
	dir, err := session.DataDir()
	if err != nil {
		return err
	}
	l, err := logging.New(logging.Options{Level: cfg.LogLevel, File: filepath.Join(dir, "typetrace.log"), JSON: cfg.LogJSON})
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// watchPlainLoop starts logging and prints each new change until ctx is done.
func watchPlainLoop(ctx context.Context, out io.Writer, p *poller.Poller) error {
	if err := awaitSource(ctx, watchSource, p.Source()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logging started. Press Ctrl+C to stop.")

	var last time.Time
	flush := func() {
		for _, rec := range newSince(p.Changes(), last) {
			printChange(out, rec)
			last = rec.Timestamp
		}
	}

	t := time.NewTicker(cfg.RefreshInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			flush()
			s := p.Stats()
			fmt.Fprintf(out, "Logging stopped. %s recorded, avg %.2f cps.\n", plural(s.TotalChanges, "change"), s.AvgCPS)
			return nil
		case <-t.C:
			flush()
		}
	}
}

// newSince returns the records captured after last.
func newSince(records []change.Record, last time.Time) []change.Record {
	for i, rec := range records {
		if rec.Timestamp.After(last) {
			return records[i:]
		}
	}
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&watchSource.file, "file", "", "read the document from this plain-text file")
	watchCmd.Flags().StringVar(&watchSource.exec, "exec", "", "read the document from the output of this command")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print changes as lines instead of launching the TUI")
	watchCmd.Flags().BoolVar(&watchStart, "start", false, "begin logging as soon as the document is available")
	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(watchCmd)
}
