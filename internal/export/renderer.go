package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	markdownSentinel = "<!-- typetrace-export: 1 -->"
	dataPrefix       = "<!-- typetrace-data: "
	dataSuffix       = " -->"
)

// Renderer serializes a Document to bytes.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// JSONRenderer renders a Document as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// MarkdownRenderer renders a Document as a human-readable report with an
// embedded base64 JSON payload for lossless parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(doc *Document) ([]byte, error) {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder

	sb.WriteString(markdownSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# Typing activity: %s\n\n", doc.ExportDate.Format("2006-01-02 15:04:05 MST"))

	// ## Statistics
	s := doc.Statistics
	sb.WriteString("## Statistics\n\n")
	if doc.Author != "" {
		fmt.Fprintf(&sb, "- Author: %s\n", doc.Author)
	}
	fmt.Fprintf(&sb, "- Changes recorded: %d\n", doc.TotalChangesRecorded)
	fmt.Fprintf(&sb, "- Additions / deletions / modifications: %d / %d / %d\n",
		s.Additions, s.Deletions, s.Modifications)
	fmt.Fprintf(&sb, "- Characters changed: %d\n", s.TotalCharsChanged)
	fmt.Fprintf(&sb, "- Average CPS: %.2f\n", s.AvgCPS)
	fmt.Fprintf(&sb, "- Peak CPS: %.2f\n", s.MaxCPS)
	fmt.Fprintf(&sb, "- Current CPS: %.2f\n", s.CurrentCPS)
	sb.WriteString("\n")

	// ## Changes
	sb.WriteString("## Changes\n\n")
	if len(doc.Changes) == 0 {
		sb.WriteString("_No changes recorded._\n")
	} else {
		sb.WriteString("| Time | Type | Length | Index | CPS |\n")
		sb.WriteString("|------|------|--------|-------|-----|\n")
		for _, c := range doc.Changes {
			fmt.Fprintf(&sb, "| %s | %s | %d | %d | %.2f |\n",
				c.Timestamp.Format("15:04:05"),
				c.ChangeType,
				c.ChangeLength,
				c.ChangeIndex,
				c.CPS,
			)
		}
	}
	sb.WriteString("\n")

	// ## Latest Text
	if n := len(doc.Changes); n > 0 {
		sb.WriteString("## Latest Text\n\n")
		sb.WriteString("```text\n")
		text := doc.Changes[n-1].CurrentText
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}

	return []byte(sb.String()), nil
}
