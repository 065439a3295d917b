package toolmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsIdentity(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := m.Resolve("blender"); got != "blender" {
		t.Errorf("expected identity, got %q", got)
	}
}

func TestLoad_BareStringAndSubObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.json")
	content := `{
		"blender": "blender.exe",
		"ffmpeg": {"path": "/usr/bin/ffmpeg"},
		"quickbms": {"command": "quickbms"},
		"bogus": 7
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := m.Resolve("blender"); got != filepath.Join(dir, "blender.exe") {
		t.Errorf("expected relative path resolved against map dir, got %q", got)
	}
	if got := m.Resolve("ffmpeg"); got != "/usr/bin/ffmpeg" {
		t.Errorf("expected absolute path kept as-is, got %q", got)
	}
	if got := m.Resolve("quickbms"); got != filepath.Join(dir, "quickbms") {
		t.Errorf("expected command resolved relative, got %q", got)
	}
	if got := m.Resolve("unknown_tool"); got != "unknown_tool" {
		t.Errorf("expected identity for unknown tool, got %q", got)
	}
	if _, ok := m.Known("bogus"); ok {
		t.Errorf("expected unknown-shaped entry to be ignored silently")
	}
}
