package export

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// LogNarrator narrates into the structured log.
type LogNarrator struct {
	logger *slog.Logger
}

func NewLogNarrator(logger *slog.Logger) *LogNarrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNarrator{logger: logger.With("component", "narrator")}
}

func (n *LogNarrator) Narrate(text string) {
	n.logger.Info("step", "text", text)
}

// WriterNarrator prints one narrated line per step.
type WriterNarrator struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewWriterNarrator(w io.Writer, prefix string) *WriterNarrator {
	return &WriterNarrator{w: w, prefix: prefix}
}

func (n *WriterNarrator) Narrate(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "%s%s\n", n.prefix, speakable(text))
}

var operatorWords = strings.NewReplacer(
	"==", " equals ",
	"!=", " is not equal to ",
	"<=", " is at most ",
	">=", " is at least ",
	"+=", " increases by ",
	"-=", " decreases by ",
	"&&", " and ",
	"||", " or ",
)

var spaceRe = regexp.MustCompile(`\s+`)

// speakable rewrites symbolic operators as words.
func speakable(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(operatorWords.Replace(text), " "))
}
