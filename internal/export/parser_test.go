package export

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestMarkdownParser_PlainMarkdownWithoutSentinel(t *testing.T) {
	plain := `# Notes

Just a regular Markdown file.
`
	_, err := (&MarkdownParser{}).Parse([]byte(plain))
	if err == nil {
		t.Fatal("expected error for plain Markdown without sentinel, got nil")
	}
	if !strings.Contains(err.Error(), "not a valid typetrace export") {
		t.Errorf("expected error to contain 'not a valid typetrace export', got: %q", err.Error())
	}
}

func TestMarkdownParser_CorruptedBase64Payload(t *testing.T) {
	corrupted := markdownSentinel + "\n" + dataPrefix + "!!!not-valid-base64!!!" + dataSuffix + "\n"
	_, err := (&MarkdownParser{}).Parse([]byte(corrupted))
	if err == nil {
		t.Fatal("expected error for corrupted base64 payload, got nil")
	}
	if !strings.Contains(err.Error(), "corrupted base64 payload") {
		t.Errorf("unexpected error: %q", err.Error())
	}
}

func TestMarkdownParser_MissingDataPayload(t *testing.T) {
	_, err := (&MarkdownParser{}).Parse([]byte(markdownSentinel + "\n\n# Typing activity\n"))
	if err == nil {
		t.Fatal("expected error when data payload is missing, got nil")
	}
	if !strings.Contains(err.Error(), "missing data payload") {
		t.Errorf("unexpected error: %q", err.Error())
	}
}

func TestMarkdownParser_ValidBase64ButInvalidJSON(t *testing.T) {
	bad := base64.StdEncoding.EncodeToString([]byte("this is not json {{{"))
	content := markdownSentinel + "\n" + dataPrefix + bad + dataSuffix + "\n"

	_, err := (&MarkdownParser{}).Parse([]byte(content))
	if err == nil {
		t.Fatal("expected error for invalid embedded JSON, got nil")
	}
	if !strings.Contains(err.Error(), "not a valid typetrace export") {
		t.Errorf("unexpected error: %q", err.Error())
	}
}

func TestJSONParser_MalformedJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"truncated object", `{"statistics": {`},
		{"plain text", "not json at all"},
		{"array instead of object", `[1, 2, 3]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&JSONParser{}).Parse([]byte(tc.input))
			if err == nil {
				t.Fatalf("expected error for malformed JSON input %q, got nil", tc.input)
			}
			if !strings.Contains(err.Error(), "failed to parse JSON export") {
				t.Errorf("unexpected error: %q", err.Error())
			}
		})
	}
}

func TestParserFor(t *testing.T) {
	if _, ok := ParserFor("typetrace-data.MD").(*MarkdownParser); !ok {
		t.Error("expected Markdown parser for .MD file")
	}
	if _, ok := ParserFor("typetrace-data.json").(*JSONParser); !ok {
		t.Error("expected JSON parser for .json file")
	}
}
