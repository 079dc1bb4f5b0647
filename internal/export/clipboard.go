package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var ErrNoClipboard = errors.New("no clipboard command available")

type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// WriterClipboard "copies" by writing the text to w.
type WriterClipboard struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterClipboard(w io.Writer) *WriterClipboard {
	return &WriterClipboard{w: w}
}

func (c *WriterClipboard) Copy(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := io.WriteString(c.w, text); err != nil {
		return fmt.Errorf("writing clipboard text: %w", err)
	}
	return nil
}

// clipboardCommands are tried in order; the first one on PATH wins.
var clipboardCommands = [][]string{
	{"pbcopy"},
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"clip.exe"},
}

// SystemClipboard pipes text into the platform clipboard tool.
type SystemClipboard struct {
	lookPath func(string) (string, error)
}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{lookPath: exec.LookPath}
}

func (c *SystemClipboard) command() ([]string, error) {
	for _, cmd := range clipboardCommands {
		if path, err := c.lookPath(cmd[0]); err == nil {
			return append([]string{path}, cmd[1:]...), nil
		}
	}
	return nil, ErrNoClipboard
}

func (c *SystemClipboard) Copy(ctx context.Context, text string) error {
	args, err := c.command()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
