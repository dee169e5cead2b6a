package source

import (
	"context"
	"sync"
	"time"
)

// Push holds the latest text pushed by an external client, such as a
// browser add-in posting the document body to the server.
type Push struct {
	mu       sync.RWMutex
	text     string
	pushedAt time.Time
	ready    bool
}

// Set stores text as the current document.
func (p *Push) Set(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
	p.pushedAt = time.Now()
	p.ready = true
}

// PushedAt returns when text was last pushed, or the zero time.
func (p *Push) PushedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pushedAt
}

// Text implements Source. It fails with ErrUnavailable until the first push.
func (p *Push) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return "", ErrUnavailable
	}
	return p.text, nil
}

// Probe implements Prober.
func (p *Push) Probe(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return ErrUnavailable
	}
	return nil
}
