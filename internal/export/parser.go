package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Parser deserializes an export file back into a Document.
type Parser interface {
	Parse(data []byte) (*Document, error)
}

// JSONParser parses a JSON export.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON export: %w", err)
	}
	return &doc, nil
}

// MarkdownParser parses a Markdown export by decoding the embedded payload.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Document, error) {
	content := string(data)

	if !strings.Contains(content, markdownSentinel) {
		return nil, fmt.Errorf("not a valid typetrace export: missing sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid typetrace export: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid typetrace export: malformed data payload")
	}

	jsonBytes, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid typetrace export: corrupted base64 payload: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("not a valid typetrace export: failed to parse embedded JSON: %w", err)
	}
	return &doc, nil
}

// ParserFor picks a parser from the file name: .md files are Markdown,
// anything else is JSON.
func ParserFor(path string) Parser {
	if strings.HasSuffix(strings.ToLower(path), ".md") {
		return &MarkdownParser{}
	}
	return &JSONParser{}
}
