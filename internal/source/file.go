package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const utf8BOM = "\uFEFF"

// File reads the document from a plain-text file on every fetch.
type File struct {
	Path string
}

// Text implements Source. A missing file is reported as ErrUnavailable; an
// empty file is a valid, empty snapshot.
func (f *File) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", f.Path, ErrUnavailable)
		}
		return "", fmt.Errorf("read document %s: %w", f.Path, err)
	}
	return strings.TrimPrefix(string(data), utf8BOM), nil
}

// Probe implements Prober.
func (f *File) Probe(ctx context.Context) error {
	info, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", f.Path, ErrUnavailable)
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", f.Path, ErrUnavailable)
	}
	return nil
}
