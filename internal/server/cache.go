package server

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/dotcommander/codevisor/internal/domain"
)

// Cache stores finished analyses keyed by language and code.
type Cache interface {
	Get(key string) (*domain.AnalysisResponse, bool)
	Put(key string, resp *domain.AnalysisResponse) error
	Close() error
}

// cacheKey is "a:" plus the hex sha256 of language and code.
func cacheKey(lang domain.Language, code string) string {
	h := sha256.New()
	h.Write([]byte(lang))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return "a:" + hex.EncodeToString(h.Sum(nil))
}

// PebbleCache keeps gzip-compressed JSON responses in a Pebble database.
type PebbleCache struct {
	db     *pebble.DB
	logger *slog.Logger
}

func OpenPebbleCache(dir string) (*PebbleCache, error) {
	db, err := pebble.Open(dir, &pebble.Options{Logger: quietLogger{}})
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", dir, err)
	}
	return &PebbleCache{
		db:     db,
		logger: slog.Default().With("component", "analysis_cache"),
	}, nil
}

func (c *PebbleCache) Get(key string) (*domain.AnalysisResponse, bool) {
	val, closer, err := c.db.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	defer closer.Close()

	var resp domain.AnalysisResponse
	if err := decompressJSON(val, &resp); err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *PebbleCache) Put(key string, resp *domain.AnalysisResponse) error {
	data, err := compressJSON(resp)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (c *PebbleCache) Close() error {
	return c.db.Close()
}

// noCache is used when no cache directory is configured.
type noCache struct{}

func (noCache) Get(string) (*domain.AnalysisResponse, bool) { return nil, false }
func (noCache) Put(string, *domain.AnalysisResponse) error  { return nil }
func (noCache) Close() error                                { return nil }

func compressJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gw).Encode(v); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressJSON(data []byte, v any) error {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer gr.Close()

	raw, err := io.ReadAll(gr)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// quietLogger drops Pebble's informational output.
type quietLogger struct{}

func (quietLogger) Infof(format string, args ...any) {}
func (quietLogger) Errorf(format string, args ...any) {
	slog.Default().With("component", "pebble").Error(fmt.Sprintf(format, args...))
}
func (quietLogger) Fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
