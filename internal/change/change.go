// Package change classifies the difference between two document snapshots
// and estimates the typing rate that produced it.
package change

import "time"

// Type is the coarse classification of a snapshot difference.
type Type string

const (
	Addition     Type = "addition"
	Deletion     Type = "deletion"
	Modification Type = "modification"
)

// minCPSWindow is the smallest capture gap that yields a rate. Closer
// captures are treated as noise.
const minCPSWindow = 100 * time.Millisecond

// Record is one classified change between two consecutive snapshots.
// Lengths and indexes count Unicode code points.
type Record struct {
	Timestamp    time.Time `json:"timestamp"` // capture time of CurrentText
	PreviousText string    `json:"previousText"`
	CurrentText  string    `json:"currentText"`
	ChangeType   Type      `json:"changeType"`
	ChangeLength int       `json:"changeLength"`
	ChangeIndex  int       `json:"changeIndex"`
	CPS          float64   `json:"cps"`
}

// Classify compares prev with curr and builds the change record. prevAt is
// the capture time of prev and may be nil when no earlier capture exists.
//
// The diff is positional: a longer text is an addition, a shorter one a
// deletion, and an equal-length text a modification whose length is the
// number of differing positions. Edits away from the first point of
// divergence are not located.
func Classify(prev, curr string, prevAt *time.Time, currAt time.Time) Record {
	p, c := []rune(prev), []rune(curr)

	rec := Record{
		Timestamp:    currAt,
		PreviousText: prev,
		CurrentText:  curr,
	}

	switch {
	case len(c) > len(p):
		rec.ChangeType = Addition
		rec.ChangeLength = len(c) - len(p)
		rec.ChangeIndex = divergence(p, c)
	case len(c) < len(p):
		rec.ChangeType = Deletion
		rec.ChangeLength = len(p) - len(c)
		rec.ChangeIndex = divergence(c, p)
	default:
		rec.ChangeType = Modification
		rec.ChangeLength = hamming(p, c)
		rec.ChangeIndex = divergence(p, c)
	}

	rec.CPS = EstimateCPS(rec.ChangeLength, prevAt, currAt)
	return rec
}

// EstimateCPS returns length divided by the seconds between the two
// captures. It is 0 without a previous capture, for an empty change, or when
// the captures are 100ms or less apart.
func EstimateCPS(length int, prevAt *time.Time, currAt time.Time) float64 {
	if prevAt == nil || length == 0 {
		return 0
	}
	dt := currAt.Sub(*prevAt)
	if dt <= minCPSWindow {
		return 0
	}
	return float64(length) / dt.Seconds()
}

// divergence returns the first index where shorter and longer differ,
// scanning only the length of shorter. It returns len(shorter) when shorter
// is a prefix of longer.
func divergence(shorter, longer []rune) int {
	for i := range shorter {
		if shorter[i] != longer[i] {
			return i
		}
	}
	return len(shorter)
}

// hamming counts the positions where a and b differ. Both must have the
// same length.
func hamming(a, b []rune) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}
