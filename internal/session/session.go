// Package session persists the state of a running typetrace daemon so that
// CLI verbs can find it.
package session

import "time"

// Session describes a running `typetrace serve` process.
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	Addr      string    `json:"addr"`             // host:port the API listens on
	Source    string    `json:"source,omitempty"` // human description of the document source
	PID       int       `json:"pid,omitempty"`
}

// BaseURL returns the HTTP base URL of the daemon.
func (s *Session) BaseURL() string {
	return "http://" + s.Addr
}
