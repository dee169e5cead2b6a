package cmd

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/history"
)

// typeWidth fits the longest change type in plain watch lines.
const typeWidth = len("MODIFICATION")

// previewRunes caps the text excerpt shown per change.
const previewRunes = 40

var typeColors = map[change.Type]*color.Color{
	change.Addition:     color.New(color.FgGreen),
	change.Deletion:     color.New(color.FgRed),
	change.Modification: color.New(color.FgYellow),
}

// typeLabel pads before colouring so escape codes do not count toward width.
func typeLabel(t change.Type, width int) string {
	label := fmt.Sprintf("%-*s", width, strings.ToUpper(string(t)))
	if c, ok := typeColors[t]; ok {
		return c.Sprint(label)
	}
	return label
}

// printDocument writes a plain-text rendition of an export.
func printDocument(w io.Writer, doc *export.Document) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Exported:  %s\n", doc.ExportDate.Format("2006-01-02 15:04:05 MST"))
	if doc.Author != "" {
		fmt.Fprintf(w, "  Author:    %s\n", doc.Author)
	}
	if doc.RunID != "" {
		fmt.Fprintf(w, "  Run:       %s\n", doc.RunID)
	}
	fmt.Fprintln(w)
	printStats(w, doc.Statistics)
	fmt.Fprintln(w)

	bold.Fprintln(w, "## Changes")
	if len(doc.Changes) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	fmt.Fprintln(w, changesTable(doc.Changes))
}

func printStats(w io.Writer, s history.Stats) {
	fmt.Fprintf(w, "  Changes:        %d (%d additions, %d deletions, %d modifications)\n",
		s.TotalChanges, s.Additions, s.Deletions, s.Modifications)
	fmt.Fprintf(w, "  Chars changed:  %s\n", humanize.Comma(int64(s.TotalCharsChanged)))
	fmt.Fprintf(w, "  CPS:            avg %.2f, max %.2f, current %.2f\n", s.AvgCPS, s.MaxCPS, s.CurrentCPS)
}

func changesTable(records []change.Record) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"#", "Time", "Type", "Length", "Index", "CPS", "Text"})
	for i, rec := range records {
		tbl.AppendRow(table.Row{
			i + 1,
			rec.Timestamp.Format("15:04:05"),
			typeLabel(rec.ChangeType, 0),
			rec.ChangeLength,
			rec.ChangeIndex,
			fmt.Sprintf("%.2f", rec.CPS),
			preview(rec.CurrentText),
		})
	}
	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("Total: %d", len(records))})
	return tbl.Render()
}

// printChange writes one change as a single line, used by plain watch mode.
func printChange(w io.Writer, rec change.Record) {
	fmt.Fprintf(w, "%s  %s  len %-4d at %-5d  %6.2f cps  %s\n",
		rec.Timestamp.Format("15:04:05"),
		typeLabel(rec.ChangeType, typeWidth),
		rec.ChangeLength,
		rec.ChangeIndex,
		rec.CPS,
		preview(rec.CurrentText),
	)
}

// preview flattens text onto one line and keeps its tail, where typing
// usually happens.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if n := utf8.RuneCountInString(s); n > previewRunes {
		r := []rune(s)
		return "…" + string(r[n-previewRunes+1:])
	}
	return s
}
