package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid path")

// FileSystem stores files on disk under baseDir. Every path is resolved
// relative to baseDir and may not escape it.
type FileSystem struct {
	baseDir string
}

func NewFileSystem(baseDir string) *FileSystem {
	return &FileSystem{baseDir: filepath.Clean(baseDir)}
}

func (fs *FileSystem) BaseDir() string {
	return fs.baseDir
}

// resolve maps a relative path onto baseDir.
func (fs *FileSystem) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}

	full := filepath.Join(fs.baseDir, path)
	rel, err := filepath.Rel(fs.baseDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: outside base directory", ErrInvalidPath)
	}
	return full, nil
}

func (fs *FileSystem) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := fs.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	// Readers never see a partially written file.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}

func (fs *FileSystem) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns the paths matching a glob pattern, relative to baseDir.
func (fs *FileSystem) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.resolve(pattern)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	results := make([]string, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(fs.baseDir, match)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		results = append(results, rel)
	}
	return results, nil
}

func (fs *FileSystem) Exists(ctx context.Context, path string) bool {
	full, err := fs.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}
