// Package storage writes exported artifacts under a sandboxed base directory.
package storage

import "context"

// Storage saves and reads files by path relative to its base directory.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, pattern string) ([]string, error)
	Exists(ctx context.Context, path string) bool
}

var _ Storage = (*FileSystem)(nil)
