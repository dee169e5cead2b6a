package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fakeyudi/typetrace/internal/change"
)

const (
	cpsSamples = 10
	// equalContext is how many unchanged runes an inline diff keeps on each
	// side of a change.
	equalContext = 24
)

// ── Tab renderers ──

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabOverview:
		return m.renderOverview()
	case tabChanges:
		return m.renderChanges()
	case tabCPS:
		return m.renderCPS()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-18s", label)) + "  " + value + "\n")
}

func (m *Model) renderOverview() string {
	s := m.snap.Stats
	var sb strings.Builder

	sb.WriteString(heading("Status"))
	if m.live() {
		badge := stoppedBadge.Render("○ STOPPED")
		if s.IsLogging {
			badge = loggingBadge.Render("● LOGGING")
		}
		sb.WriteString("  " + badge + "\n")
	} else {
		row(&sb, "Exported:", m.doc.ExportDate.Format("2006-01-02 15:04:05 MST"))
		if m.doc.Author != "" {
			row(&sb, "Author:", m.doc.Author)
		}
		if m.doc.RunID != "" {
			row(&sb, "Run:", m.doc.RunID)
		}
	}
	if n := len(m.snap.Changes); n > 0 {
		last := m.snap.Changes[n-1].Timestamp
		row(&sb, "Last change:", humanize.Time(last))
	}

	sb.WriteString(heading("Changes"))
	row(&sb, "Total:", humanize.Comma(int64(s.TotalChanges)))
	row(&sb, "Additions:", humanize.Comma(int64(s.Additions)))
	row(&sb, "Deletions:", humanize.Comma(int64(s.Deletions)))
	row(&sb, "Modifications:", humanize.Comma(int64(s.Modifications)))
	row(&sb, "Chars changed:", humanize.Comma(int64(s.TotalCharsChanged)))

	sb.WriteString(heading("Typing speed (chars/s)"))
	row(&sb, "Current:", fmt.Sprintf("%.2f", s.CurrentCPS))
	row(&sb, "Average:", fmt.Sprintf("%.2f", s.AvgCPS))
	row(&sb, "Peak:", fmt.Sprintf("%.2f", s.MaxCPS))
	return sb.String()
}

// newestFirst returns the i-th record counting back from the newest.
func (m *Model) newestFirst(i int) change.Record {
	return m.snap.Changes[len(m.snap.Changes)-1-i]
}

func (m *Model) selected() (change.Record, bool) {
	if len(m.snap.Changes) == 0 {
		return change.Record{}, false
	}
	return m.newestFirst(m.cursor), true
}

func typeBadge(t change.Type) string {
	label := fmt.Sprintf("%-12s", strings.ToUpper(string(t)))
	switch t {
	case change.Addition:
		return kindAdditionStyle.Render(label)
	case change.Deletion:
		return kindDeletionStyle.Render(label)
	default:
		return kindModificationStyle.Render(label)
	}
}

func (m *Model) renderChanges() string {
	var sb strings.Builder
	n := len(m.snap.Changes)
	sb.WriteString(heading(fmt.Sprintf("Changes (%d, newest first)", n)))
	if n == 0 {
		sb.WriteString(dimStyle.Render("  (none yet)") + "\n")
		return sb.String()
	}

	for i := 0; i < n; i++ {
		rec := m.newestFirst(i)
		open := m.expanded[rec.Timestamp]

		toggle := dimStyle.Render("  ▶ ")
		if open {
			toggle = dimStyle.Render("  ▼ ")
		}
		line := fmt.Sprintf("%s%s  %s  %4d chars @ %-5d %6.2f cps",
			toggle,
			timeStyle.Render(rec.Timestamp.Format("15:04:05")),
			typeBadge(rec.ChangeType),
			rec.ChangeLength,
			rec.ChangeIndex,
			rec.CPS,
		)
		if i == m.cursor {
			line = selectedRowStyle.Width(max(1, m.width-2)).Render(line)
		}
		sb.WriteString(line + "\n")

		if open {
			sb.WriteString(renderInlineDiff(rec.PreviousText, rec.CurrentText, m.width))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderInlineDiff shows a character-level diff of prev → curr with long
// unchanged stretches elided.
func renderInlineDiff(prev, curr string, width int) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(prev, curr, false))

	var body strings.Builder
	for i, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			body.WriteString(diffAddStyle.Render(d.Text))
		case diffmatchpatch.DiffDelete:
			body.WriteString(diffDelStyle.Render(d.Text))
		case diffmatchpatch.DiffEqual:
			body.WriteString(diffSameStyle.Render(elide(d.Text, i == 0, i == len(diffs)-1)))
		}
	}

	border := dimStyle.Render("    " + strings.Repeat("─", max(1, width-8)))
	var sb strings.Builder
	sb.WriteString(border + "\n")
	for _, l := range strings.Split(body.String(), "\n") {
		sb.WriteString("    " + l + "\n")
	}
	sb.WriteString(border + "\n")
	return sb.String()
}

// elide shortens an unchanged run, keeping equalContext runes next to each
// neighbouring change.
func elide(s string, first, last bool) string {
	r := []rune(s)
	const gap = "…"
	switch {
	case first && last:
		return s
	case first:
		if len(r) > equalContext {
			return gap + string(r[len(r)-equalContext:])
		}
	case last:
		if len(r) > equalContext {
			return string(r[:equalContext]) + gap
		}
	default:
		if len(r) > 2*equalContext {
			return string(r[:equalContext]) + gap + string(r[len(r)-equalContext:])
		}
	}
	return s
}

func (m *Model) renderCPS() string {
	var sb strings.Builder
	recent := m.snap.Changes
	if len(recent) > cpsSamples {
		recent = recent[len(recent)-cpsSamples:]
	}
	sb.WriteString(heading(fmt.Sprintf("Recent typing speed (last %d changes)", len(recent))))
	if len(recent) == 0 {
		sb.WriteString(dimStyle.Render("  (no samples)") + "\n")
		return sb.String()
	}

	peak := 0.0
	for _, r := range recent {
		peak = max(peak, r.CPS)
	}
	barWidth := max(10, m.width-34)

	for _, r := range recent {
		n := 0
		if peak > 0 {
			n = int(r.CPS / peak * float64(barWidth))
		}
		fmt.Fprintf(&sb, "  %s  %-12s %7.2f  %s\n",
			timeStyle.Render(r.Timestamp.Format(time.TimeOnly)),
			string(r.ChangeType),
			r.CPS,
			barStyle.Render(strings.Repeat("█", n)),
		)
	}
	return sb.String()
}
