package history

import (
	"math"

	"github.com/fakeyudi/typetrace/internal/change"
)

// RecentWindow is how many of the newest records are searched for the
// current rate.
const RecentWindow = 5

// Stats summarises the records currently held. Rates are rounded to two
// decimals.
type Stats struct {
	TotalChanges      int     `json:"totalChanges"`
	Additions         int     `json:"additions"`
	Deletions         int     `json:"deletions"`
	Modifications     int     `json:"modifications"`
	IsLogging         bool    `json:"isLogging"`
	AvgCPS            float64 `json:"avgCPS"`
	MaxCPS            float64 `json:"maxCPS"`
	CurrentCPS        float64 `json:"currentCPS"`
	TotalCharsChanged int     `json:"totalCharsChanged"`
}

// Stats computes the aggregate statistics on demand. IsLogging is left
// false; the poller fills it in.
func (h *History) Stats() Stats {
	return Summarize(h.All())
}

// Summarize computes statistics over records ordered oldest first.
//
// AvgCPS averages only nonzero rates. CurrentCPS is the newest nonzero rate
// among the last RecentWindow records, or 0.
func Summarize(records []change.Record) Stats {
	var (
		s       Stats
		sum     float64
		nonZero int
	)
	s.TotalChanges = len(records)

	for _, r := range records {
		switch r.ChangeType {
		case change.Addition:
			s.Additions++
		case change.Deletion:
			s.Deletions++
		case change.Modification:
			s.Modifications++
		}
		s.TotalCharsChanged += r.ChangeLength

		if r.CPS > 0 {
			sum += r.CPS
			nonZero++
			s.MaxCPS = max(s.MaxCPS, r.CPS)
		}
	}
	if nonZero > 0 {
		s.AvgCPS = sum / float64(nonZero)
	}

	for i := len(records) - 1; i >= max(0, len(records)-RecentWindow); i-- {
		if records[i].CPS > 0 {
			s.CurrentCPS = records[i].CPS
			break
		}
	}

	s.AvgCPS = round2(s.AvgCPS)
	s.MaxCPS = round2(s.MaxCPS)
	s.CurrentCPS = round2(s.CurrentCPS)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
