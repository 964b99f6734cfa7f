package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/inkwell/pkg/core"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPickPattern limits the picker to text-like files.
const DefaultPickPattern = "*.{md,markdown,txt}"

// PromptPicker asks for a path on a line-oriented terminal.
type PromptPicker struct {
	In      *bufio.Reader
	Out     io.Writer
	Pattern string
}

// NewPromptPicker creates a picker reading from in and prompting on out.
func NewPromptPicker(in io.Reader, out io.Writer) *PromptPicker {
	return &PromptPicker{
		In:      bufio.NewReader(in),
		Out:     out,
		Pattern: DefaultPickPattern,
	}
}

// Pick prompts once. An empty answer or end of input counts as a cancel.
func (p *PromptPicker) Pick(ctx context.Context, mode core.PickMode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	label := "Open file"
	if mode == core.PickSave {
		label = "Save as"
	}
	fmt.Fprintf(p.Out, "%s (%s, empty to cancel): ", label, p.Pattern)

	line, err := p.In.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read path: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", core.ErrCancelled
	}

	abs, err := filepath.Abs(line)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", line, err)
	}
	if !p.Accept(abs) {
		return "", fmt.Errorf("%s does not match %s", line, p.Pattern)
	}

	if mode == core.PickOpen {
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("%w: %s", core.ErrHandleRevoked, line)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", line)
		}
	}
	return abs, nil
}

// Accept reports whether the base name of path matches the picker pattern.
func (p *PromptPicker) Accept(path string) bool {
	pattern := p.Pattern
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(pattern, strings.ToLower(filepath.Base(path)))
	return err == nil && ok
}

var _ core.Picker = (*PromptPicker)(nil)
