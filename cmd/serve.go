package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/metrics"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/server"
	"github.com/fakeyudi/typetrace/internal/session"
	"github.com/fakeyudi/typetrace/internal/source"
)

var (
	serveSource sourceFlags
	serveAddr   string
	serveStart  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the typetrace daemon and its HTTP API",
	Long: `Run the typetrace daemon. The document is read from --file, from the
output of --exec, or pushed by an editor integration to PUT /api/document.
Logging begins when 'typetrace start' is run, or immediately with --start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cmd)
	},
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	store, err := session.NewSessionStore()
	if err != nil {
		return err
	}
	if err := ensureNoDaemon(ctx, store); err != nil {
		return err
	}

	push := &source.Push{}
	src, desc, err := serveSource.build(push, cfg.DegradeToEmpty)
	if err != nil {
		return err
	}

	rec := metrics.New()
	p := poller.New(src,
		poller.WithInterval(cfg.PollInterval()),
		poller.WithHistory(history.New(cfg.MaxChanges)),
		poller.WithLogger(logger),
		poller.WithMetrics(rec),
	)
	defer p.Stop()

	srv := server.New(p,
		server.WithPush(push),
		server.WithMetrics(rec),
		server.WithLogger(logger),
		server.WithRefreshInterval(cfg.RefreshInterval()),
		server.WithAuthor(author()),
	)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	state := &session.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
		Addr:      ln.Addr().String(),
		Source:    desc,
		PID:       os.Getpid(),
	}
	if err := store.Save(state); err != nil {
		ln.Close()
		return fmt.Errorf("saving daemon state: %w", err)
	}
	defer func() {
		if err := store.Delete(); err != nil {
			logger.Warnw("failed to remove daemon state", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "typetrace daemon listening on http://%s (source: %s)\n", state.Addr, desc)

	if serveStart || (activeProfile != nil && activeProfile.AutoStart) {
		go func() {
			if err := awaitSource(ctx, serveSource, src); err != nil {
				logger.Warnw("document host not ready, logging not started", "error", err)
				return
			}
			if err := p.Start(ctx); err != nil {
				logger.Warnw("auto-start failed", "error", err)
			}
		}()
	}

	err = srv.Serve(ctx, ln)
	fmt.Fprintln(out, "typetrace daemon stopped.")
	return err
}

// ensureNoDaemon fails when the state file points at a daemon that still
// answers. A stale state file is removed.
func ensureNoDaemon(ctx context.Context, store session.SessionStore) error {
	s, err := store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return nil
	}
	if err != nil {
		logger.Warnw("ignoring unreadable daemon state", "error", err)
		return store.Delete()
	}
	c, err := clientFor(s)
	if err != nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.Status(pctx); err == nil {
		return fmt.Errorf("a typetrace daemon is already running at %s (pid %d)", s.Addr, s.PID)
	}
	logger.Infow("removing stale daemon state", "addr", s.Addr)
	return store.Delete()
}

func init() {
	serveCmd.Flags().StringVar(&serveSource.file, "file", "", "read the document from this plain-text file")
	serveCmd.Flags().StringVar(&serveSource.exec, "exec", "", "read the document from the output of this command")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "begin logging as soon as the document is available")
	rootCmd.AddCommand(serveCmd)
}
