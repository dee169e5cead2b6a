package source

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes name with args and returns its standard output.
// This abstraction allows mocking in tests.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Command obtains the document text from an external program, such as a
// converter that prints a word-processor file as plain text.
type Command struct {
	Name   string
	Args   []string
	Runner Runner // if nil, runs a real subprocess
}

func defaultRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// Text implements Source.
func (c *Command) Text(ctx context.Context) (string, error) {
	runner := c.Runner
	if runner == nil {
		runner = defaultRunner
	}
	out, err := runner(ctx, c.Name, c.Args...)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", c.Name, err)
	}
	return out, nil
}

// Probe implements Prober by checking the program can be found.
func (c *Command) Probe(ctx context.Context) error {
	if c.Runner != nil {
		return nil
	}
	if _, err := exec.LookPath(c.Name); err != nil {
		return fmt.Errorf("%s: %w", c.Name, ErrUnavailable)
	}
	return nil
}
