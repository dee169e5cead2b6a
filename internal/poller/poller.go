// Package poller periodically snapshots a document, detects text changes and
// records them in a bounded history.
//
// A Poller is an explicitly constructed service: one instance tracks one
// document stream. Start and Stop control the polling loop; history and
// statistics can be read at any time from other goroutines.
package poller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/metrics"
	"github.com/fakeyudi/typetrace/internal/source"
)

// DefaultInterval is the minimum spacing between two captures.
const DefaultInterval = time.Second

// UnreadableText is returned by CurrentText when the document cannot be read.
const UnreadableText = "Unable to access document content."

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the minimum spacing between captures.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHistory replaces the default 50-record history.
func WithHistory(h *history.History) Option {
	return func(p *Poller) {
		if h != nil {
			p.hist = h
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithClock replaces time.Now for capture timestamps and scheduling.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// Poller owns the capture state of one document stream.
type Poller struct {
	src      source.Source
	hist     *history.History
	logger   *zap.SugaredLogger
	metrics  *metrics.Recorder
	interval time.Duration
	now      func() time.Time

	mu          sync.Mutex
	logging     bool
	inFlight    bool
	lastText    string
	lastCapture *time.Time
	// lastAttempt is when the latest fetch returned, successful or not.
	// Scheduling spaces attempts from it; CPS uses lastCapture only.
	lastAttempt *time.Time
	timer       *time.Timer
	// gen changes on every Start and Stop. Callbacks and fetches carry the
	// generation they were issued under and are dropped when it is stale.
	gen    uint64
	runID  string
	runCtx context.Context
	cancel context.CancelFunc
}

// New returns a stopped Poller reading snapshots from src.
func New(src source.Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		hist:     history.New(history.DefaultCapacity),
		logger:   zap.NewNop().Sugar(),
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins logging. It is a no-op when already logging. When the source
// can be probed and reports the host unavailable, Start returns an error
// wrapping source.ErrUnavailable and polling does not begin.
//
// The baseline snapshot is fetched asynchronously; a failed baseline fetch
// starts from an empty document.
func (p *Poller) Start(ctx context.Context) error {
	if p.IsActive() {
		return nil
	}

	if pr, ok := p.src.(source.Prober); ok {
		if err := pr.Probe(ctx); err != nil {
			if !errors.Is(err, source.ErrUnavailable) {
				err = fmt.Errorf("%w: %w", source.ErrUnavailable, err)
			}
			return fmt.Errorf("start logging: %w", err)
		}
	}

	p.mu.Lock()
	if p.logging {
		p.mu.Unlock()
		return nil
	}
	p.logging = true
	p.inFlight = false
	p.lastText = ""
	p.lastCapture = nil
	p.lastAttempt = nil
	p.gen++
	gen := p.gen
	p.runID = uuid.NewString()
	// The run outlives the caller's context (often a request); Stop ends it.
	p.runCtx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	runCtx, runID := p.runCtx, p.runID
	p.mu.Unlock()

	p.metrics.Logging(true)
	p.logger.Infow("logging started", "run", runID, "interval", p.interval.String())

	go p.baseline(runCtx, gen)
	return nil
}

// Stop cancels the pending poll and clears the logging flag and capture
// time. History is kept. A fetch still outstanding is discarded when it
// returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	wasLogging := p.logging
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.logging = false
	p.inFlight = false
	p.lastCapture = nil
	p.lastAttempt = nil
	p.gen++
	runID := p.runID
	p.mu.Unlock()

	if wasLogging {
		p.metrics.Logging(false)
		p.logger.Infow("logging stopped", "run", runID, "changes", p.hist.Len())
	}
}

// baseline captures the starting snapshot of a run and arms the first poll.
func (p *Poller) baseline(ctx context.Context, gen uint64) {
	text, err := p.src.Text(ctx)
	captured := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.logging {
		return
	}
	if err != nil {
		p.logger.Warnw("baseline fetch failed, starting from an empty document", "run", p.runID, "error", err)
		text = ""
	}
	p.lastText = text
	p.lastCapture = &captured
	p.lastAttempt = &captured
	p.scheduleLocked(gen)
}

// scheduleLocked arms the next poll so fetch attempts, failed ones
// included, stay at least one interval apart. p.mu must be held.
func (p *Poller) scheduleLocked(gen uint64) {
	if !p.logging || gen != p.gen {
		return
	}
	delay := nextDelay(p.interval, p.lastAttempt, p.now())
	p.timer = time.AfterFunc(delay, func() { p.poll(gen) })
}

// nextDelay returns how long to wait so that the next fetch happens one
// interval after last. Without a previous attempt a full interval is
// assumed to have elapsed.
func nextDelay(interval time.Duration, last *time.Time, now time.Time) time.Duration {
	elapsed := interval
	if last != nil {
		elapsed = now.Sub(*last)
	}
	return max(0, interval-elapsed)
}

// poll fetches one snapshot, records a change when the text differs and
// re-arms itself. Fetch errors abandon only the current cycle.
func (p *Poller) poll(gen uint64) {
	p.mu.Lock()
	if !p.logging || gen != p.gen || p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	ctx := p.runCtx
	p.mu.Unlock()

	text, err := p.src.Text(ctx)
	captured := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.logging {
		return
	}
	p.inFlight = false
	p.lastAttempt = &captured
	p.metrics.Poll()

	switch {
	case err != nil:
		p.metrics.FetchFailed()
		p.logger.Warnw("document fetch failed", "run", p.runID, "error", err)
	case !sameText(text, p.lastText):
		rec := change.Classify(p.lastText, text, p.lastCapture, captured)
		p.hist.Append(rec)
		p.metrics.Change(rec, p.hist.Len())
		p.logger.Debugw("change recorded",
			"run", p.runID,
			"type", rec.ChangeType,
			"length", rec.ChangeLength,
			"index", rec.ChangeIndex,
			"cps", rec.CPS,
		)
		p.lastText = text
		p.lastCapture = &captured
	default:
		p.lastCapture = &captured
	}

	p.scheduleLocked(gen)
}

// sameText compares by code point, the unit Classify measures in, so byte
// differences that decode to the same runes are not changes.
func sameText(a, b string) bool {
	if a == b {
		return true
	}
	return slices.Equal([]rune(a), []rune(b))
}

// IsActive reports whether the poller is logging.
func (p *Poller) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logging
}

// RunID identifies the current or most recent run; empty before the first
// Start.
func (p *Poller) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Source returns the document source the poller reads.
func (p *Poller) Source() source.Source {
	return p.src
}

// History returns the underlying history.
func (p *Poller) History() *history.History {
	return p.hist
}

// Changes returns a copy of every recorded change, oldest first.
func (p *Poller) Changes() []change.Record {
	return p.hist.All()
}

// LastChanges returns the n most recent changes, oldest first.
func (p *Poller) LastChanges(n int) []change.Record {
	return p.hist.Last(n)
}

// ClearChanges empties the history without touching the logging state.
func (p *Poller) ClearChanges() {
	p.hist.Clear()
	p.metrics.HistorySize(0)
	p.logger.Infow("changes cleared")
}

// Stats returns aggregate statistics over the history.
func (p *Poller) Stats() history.Stats {
	s := p.hist.Stats()
	s.IsLogging = p.IsActive()
	return s
}

// CPSHistory returns the rates of the n most recent changes.
func (p *Poller) CPSHistory(n int) []history.CPSSample {
	return p.hist.CPSHistory(n)
}

// CurrentText reads the document directly, bypassing the polling loop.
// It returns UnreadableText when the source fails.
func (p *Poller) CurrentText(ctx context.Context) string {
	text, err := p.src.Text(ctx)
	if err != nil {
		p.logger.Warnw("failed to read current document text", "error", err)
		return UnreadableText
	}
	return text
}
