// Package export holds the side-channel capabilities of a session: copying
// text, saving the flowchart, narrating steps and tracking the highlighted
// node.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/dotcommander/codevisor/internal/storage"
)

const (
	FlowchartFile = "flowchart.svg"
	StepsFile     = "steps.txt"
	ManifestFile  = "manifest.yaml"
)

// ErrExportExists is returned when every generated export directory is
// already taken.
var ErrExportExists = errors.New("export directory already exists")

// maxNameAttempts bounds how many ids Export draws before giving up.
const maxNameAttempts = 3

// FormatMemorySuggestions renders suggestions as "Line {n}: {text}", one per
// line, in the order given.
func FormatMemorySuggestions(mem *domain.MemoryInfo) string {
	if mem == nil || len(mem.Suggestions) == 0 {
		return ""
	}
	lines := make([]string, len(mem.Suggestions))
	for i, s := range mem.Suggestions {
		lines[i] = fmt.Sprintf("Line %d: %s", s.Line, s.Suggestion)
	}
	return strings.Join(lines, "\n")
}

// FormatSteps renders the trace as a numbered list.
func FormatSteps(steps []domain.ExecutionStep) string {
	var b strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, s.NodeID, s.Description)
		if s.Line != nil && *s.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", *s.Line)
		}
		if s.Output != nil {
			fmt.Fprintf(&b, " -> %s", *s.Output)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FileExporter saves a result and returns where it went.
type FileExporter interface {
	Export(ctx context.Context, lang domain.Language, result *domain.AnalysisResult) (string, error)
}

// StorageExporter writes each export into its own directory of a Storage.
type StorageExporter struct {
	store    storage.Storage
	strategy storage.NamingStrategy
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

type ExporterOption func(*StorageExporter)

func WithNaming(strategy storage.NamingStrategy) ExporterOption {
	return func(e *StorageExporter) {
		e.strategy = strategy
	}
}

// WithClock fixes the time and id source, for tests.
func WithClock(now func() time.Time, newID func() string) ExporterOption {
	return func(e *StorageExporter) {
		if now != nil {
			e.now = now
		}
		if newID != nil {
			e.newID = newID
		}
	}
}

func NewStorageExporter(store storage.Storage, opts ...ExporterOption) *StorageExporter {
	e := &StorageExporter{
		store:    store,
		strategy: storage.NameTimestamp,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default().With("component", "exporter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes flowchart.svg, steps.txt and manifest.yaml and returns the
// export directory relative to the storage root.
func (e *StorageExporter) Export(ctx context.Context, lang domain.Language, result *domain.AnalysisResult) (string, error) {
	if result == nil || result.Flowchart == "" {
		return "", fmt.Errorf("export: %w", domain.ErrGenerationFailed)
	}

	at := e.now()
	id, dir, err := e.freshDir(ctx, lang, at)
	if err != nil {
		return "", err
	}

	files := []struct {
		name string
		data []byte
	}{
		{FlowchartFile, []byte(result.Flowchart)},
		{StepsFile, []byte(FormatSteps(result.ExecutionSteps))},
	}

	manifest := storage.Manifest{
		ID:        id,
		CreatedAt: at.UTC(),
		Language:  lang.String(),
		Steps:     len(result.ExecutionSteps),
	}
	if result.ComplexityAnalysis != nil {
		manifest.Complexity = result.ComplexityAnalysis.TimeComplexity
	}
	if result.MemoryAnalysis != nil {
		manifest.Memory = result.MemoryAnalysis.EstimatedMemoryUsage
	}

	for _, f := range files {
		if err := e.store.Save(ctx, dir+"/"+f.name, f.data); err != nil {
			return "", fmt.Errorf("saving %s: %w", f.name, err)
		}
		manifest.Files = append(manifest.Files, f.name)
	}

	data, err := manifest.Marshal()
	if err != nil {
		return "", err
	}
	if err := e.store.Save(ctx, dir+"/"+ManifestFile, data); err != nil {
		return "", fmt.Errorf("saving %s: %w", ManifestFile, err)
	}

	e.logger.Info("analysis exported", "dir", dir, "language", lang, "steps", manifest.Steps)
	return dir, nil
}

// freshDir draws ids until the export directory is unused.
func (e *StorageExporter) freshDir(ctx context.Context, lang domain.Language, at time.Time) (string, string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		id := e.newID()
		dir := storage.ExportDir(id, lang.String(), at, e.strategy)
		if !e.store.Exists(ctx, dir) {
			return id, dir, nil
		}
		e.logger.Debug("export directory taken", "dir", dir, "attempt", attempt+1)
	}
	return "", "", fmt.Errorf("export: %w", ErrExportExists)
}

// Exports lists the directories of finished exports, oldest name first. An
// export counts as finished once its manifest is written.
func (e *StorageExporter) Exports(ctx context.Context) ([]string, error) {
	manifests, err := e.store.List(ctx, path.Join("exports", "*", ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	dirs := make([]string, 0, len(manifests))
	for _, m := range manifests {
		dirs = append(dirs, path.Dir(filepath.ToSlash(m)))
	}
	sort.Strings(dirs)
	return dirs, nil
}
