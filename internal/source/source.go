// Package source provides the document text accessors the poller reads
// snapshots from.
package source

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that the document host is missing or not ready.
var ErrUnavailable = errors.New("document host unavailable")

// Source returns the full current text of one document.
type Source interface {
	Text(ctx context.Context) (string, error)
}

// Prober is implemented by sources that can report host availability
// without fetching the whole document.
type Prober interface {
	Probe(ctx context.Context) error
}

// Func adapts a plain function to a Source.
type Func func(ctx context.Context) (string, error)

func (f Func) Text(ctx context.Context) (string, error) {
	return f(ctx)
}

// Chain tries each source in order and returns the first successful text.
type Chain struct {
	Sources []Source
	// DegradeToEmpty makes a fully failed chain return "" instead of an error.
	DegradeToEmpty bool
}

// Text implements Source.
func (c *Chain) Text(ctx context.Context) (string, error) {
	if len(c.Sources) == 0 {
		if c.DegradeToEmpty {
			return "", nil
		}
		return "", fmt.Errorf("empty source chain: %w", ErrUnavailable)
	}

	var errs []error
	for i, s := range c.Sources {
		text, err := s.Text(ctx)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, fmt.Errorf("source %d: %w", i, err))
	}
	if c.DegradeToEmpty {
		return "", nil
	}
	return "", errors.Join(errs...)
}

// Probe succeeds when at least one probeable member is available. Members
// without a probe count as available.
func (c *Chain) Probe(ctx context.Context) error {
	var errs []error
	for _, s := range c.Sources {
		p, ok := s.(Prober)
		if !ok {
			return nil
		}
		err := p.Probe(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return fmt.Errorf("empty source chain: %w", ErrUnavailable)
	}
	return errors.Join(errs...)
}
