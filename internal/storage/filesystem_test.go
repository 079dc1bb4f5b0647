package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFileSystemSecurity(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	require.NoError(t, os.MkdirAll(base, 0o755))

	outsideFile := filepath.Join(root, "outside.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))

	fs := NewFileSystem(base)
	ctx := context.Background()

	t.Run("Save prevents directory traversal", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			ok   bool
		}{
			{"normal path", "flowchart.svg", true},
			{"subdirectory", "exports/abc/flowchart.svg", true},
			{"dots inside a name", "exports/v1..2.svg", true},
			{"parent traversal", "../flowchart.svg", false},
			{"complex traversal", "exports/../../flowchart.svg", false},
			{"absolute path", "/etc/passwd", false},
			{"empty path", "", false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := fs.Save(ctx, tt.path, []byte("<svg/>"))
				if tt.ok {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, ErrInvalidPath)
				}
			})
		}
	})

	t.Run("Load prevents directory traversal", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "valid.txt", []byte("valid")))

		data, err := fs.Load(ctx, "valid.txt")
		require.NoError(t, err)
		assert.Equal(t, "valid", string(data))

		_, err = fs.Load(ctx, "../outside.txt")
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = fs.Load(ctx, outsideFile)
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("List stays inside the base directory", func(t *testing.T) {
		fs := NewFileSystem(t.TempDir())
		require.NoError(t, fs.Save(ctx, "exports/a/flowchart.svg", []byte("a")))
		require.NoError(t, fs.Save(ctx, "exports/b/flowchart.svg", []byte("b")))
		require.NoError(t, fs.Save(ctx, "exports/b/steps.txt", []byte("b")))

		got, err := fs.List(ctx, "exports/*/flowchart.svg")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			filepath.Join("exports", "a", "flowchart.svg"),
			filepath.Join("exports", "b", "flowchart.svg"),
		}, got)

		_, err = fs.List(ctx, "../*")
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("Exists", func(t *testing.T) {
		assert.True(t, fs.Exists(ctx, "valid.txt"))
		assert.False(t, fs.Exists(ctx, "missing.txt"))
		assert.False(t, fs.Exists(ctx, "../outside.txt"))
	})

	t.Run("Save overwrites and leaves no temp files", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "out/file.txt", []byte("one")))
		require.NoError(t, fs.Save(ctx, "out/file.txt", []byte("two")))

		entries, err := os.ReadDir(filepath.Join(base, "out"))
		require.NoError(t, err)
		require.Len(t, entries, 1)

		data, err := fs.Load(ctx, "out/file.txt")
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, fs.Save(cancelled, "late.txt", nil), context.Canceled)
	})
}

func TestExportDir(t *testing.T) {
	at := time.Date(2025, 7, 16, 15, 30, 0, 0, time.UTC)
	id := "82f06b15-1c2d-4e5f-8a9b-0c1d2e3f4a5b"

	assert.Equal(t, "exports/"+id, ExportDir(id, "python", at, NameUUID))
	assert.Equal(t, "exports/2025-07-16_1530_82f06b15", ExportDir(id, "python", at, NameTimestamp))
	assert.Equal(t, "exports/2025-07-16_1530_bubble-sort-cpp_82f06b15", ExportDir(id, "Bubble Sort (C++)", at, NameDescriptive))
	assert.Equal(t, "exports/2025-07-16_1530_export_82f06b15", ExportDir(id, "???", at, NameDescriptive))
}

func TestParseNamingStrategy(t *testing.T) {
	assert.Equal(t, NameUUID, ParseNamingStrategy("UUID"))
	assert.Equal(t, NameDescriptive, ParseNamingStrategy("descriptive"))
	assert.Equal(t, NameTimestamp, ParseNamingStrategy(""))
}

func TestManifestMarshal(t *testing.T) {
	m := Manifest{
		ID:         "abc",
		CreatedAt:  time.Date(2025, 7, 16, 15, 30, 0, 0, time.UTC),
		Language:   "java",
		Steps:      5,
		Complexity: "O(n)",
		Files:      []string{"flowchart.svg"},
	}
	data, err := m.Marshal()
	require.NoError(t, err)

	var back Manifest
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, m, back)
	assert.NotContains(t, string(data), "estimated_memory")
}
