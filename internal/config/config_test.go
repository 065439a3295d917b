package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "remake.settings.yaml"))
	require.NoError(t, err)
	require.False(t, s.Logging.DebugMode, "expected debug_mode false by default")
	require.Equal(t, 5000, s.SQLiteBusyTimeoutMS)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remake.settings.yaml")
	body := `
logging:
  debug_mode: true
  level: debug
  categories:
    process: false
default_timeout_ms: 30000
allowed_executables:
  - myconverter
sqlite_busy_timeout_ms: 2000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.True(t, s.Logging.DebugMode)
	require.Equal(t, "debug", s.Logging.Level)
	require.False(t, s.Logging.Categories["process"], "expected process category disabled")
	require.Equal(t, 30000, s.DefaultTimeoutMS)
	require.Equal(t, []string{"myconverter"}, s.AllowedExecutables)
	require.Equal(t, 2000, s.SQLiteBusyTimeoutMS)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remake.settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [this is not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSave_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "remake.settings.yaml")
	s := Default()
	s.Logging.DebugMode = true
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Logging.DebugMode, "expected debug_mode to round-trip as true")
}
