package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config lookup at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{"CODEVISOR_CONFIG", "CODEVISOR_SERVICE_URL", "CODEVISOR_ADDR", "CODEVISOR_CACHE_DIR", "CODEVISOR_EXPORT_DIR", "CODEVISOR_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestPath(t *testing.T) {
	dir := isolate(t)

	assert.Equal(t, filepath.Join(dir, "config", "codevisor", "config.yaml"), Path())

	t.Setenv("CODEVISOR_CONFIG", "/etc/codevisor.yaml")
	assert.Equal(t, "/etc/codevisor.yaml", Path())
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Service.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Service.Timeout)
	assert.Equal(t, time.Second, cfg.Playback.TickInterval)
	assert.True(t, cfg.Playback.ClearOnSubmit)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.CacheDir)
	assert.Equal(t, filepath.Join(dir, "data", "codevisor"), cfg.Export.Dir)
	assert.Equal(t, DefaultLimits(), cfg.Limits)
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "codevisor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  base_url: http://analysis.internal:8080
  timeout: 3s
playback:
  tick_interval: 250ms
  clear_on_submit: false
server:
  addr: 127.0.0.1:9000
  cache_dir: /var/cache/codevisor
log_level: debug
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.internal:8080", cfg.Service.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.TickInterval)
	assert.False(t, cfg.Playback.ClearOnSubmit)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "*", cfg.Server.AllowedOrigin, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CODEVISOR_SERVICE_URL", "http://env.example:5000")
	t.Setenv("CODEVISOR_ADDR", ":7000")
	t.Setenv("CODEVISOR_CACHE_DIR", "/tmp/cv-cache")
	t.Setenv("CODEVISOR_LOG_LEVEL", "WARN")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:5000", cfg.Service.BaseURL)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/cv-cache", cfg.Server.CacheDir)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CODEVISOR_ADDR=:6100\n"), 0o644))
	os.Unsetenv("CODEVISOR_ADDR")
	t.Cleanup(func() { os.Unsetenv("CODEVISOR_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6100", cfg.Server.Addr)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad url", "service:\n  base_url: not a url\n"},
		{"timeout too short", "service:\n  timeout: 1ms\n"},
		{"tick too fast", "playback:\n  tick_interval: 1ms\n"},
		{"unknown log level", "log_level: loud\n"},
		{"unknown naming", "export:\n  naming: random\n"},
		{"tiny code limit", "limits:\n  max_code_size: 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validating config")
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("service: [\n"), 0o644))

		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	want := Default()
	want.Service.Timeout = 42 * time.Second
	require.NoError(t, want.Save(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "exports"), expandTilde("~/exports"))
	assert.Equal(t, "/abs/path", expandTilde("/abs/path"))
}
