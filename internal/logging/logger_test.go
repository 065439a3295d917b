package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	t.Cleanup(CloseAll)
}

func TestInitialize_DisabledWritesNothing(t *testing.T) {
	resetState(t)
	root := t.TempDir()
	if err := Initialize(root, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode disabled")
	}
	if _, err := os.Stat(filepath.Join(root, ".remake", "logs")); !os.IsNotExist(err) {
		t.Fatal("expected no logs directory when debug_mode is false")
	}
}

func TestInitialize_EnabledCreatesLogFile(t *testing.T) {
	resetState(t)
	root := t.TempDir()
	if err := Initialize(root, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode enabled")
	}

	l := Get(CategoryRegistry)
	l.Info("hello %s", "world")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(root, ".remake", "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".log" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one .log file, got %v", entries)
	}
}

func TestIsCategoryEnabled_RespectsExplicitFalse(t *testing.T) {
	resetState(t)
	root := t.TempDir()
	if err := Initialize(root, Settings{
		DebugMode:  true,
		Categories: map[string]bool{"process": false},
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsCategoryEnabled(CategoryProcess) {
		t.Fatal("expected process category disabled")
	}
	if !IsCategoryEnabled(CategoryRegistry) {
		t.Fatal("expected unlisted category to default enabled")
	}
}

func TestGet_NoopLoggerWhenDisabled(t *testing.T) {
	resetState(t)
	root := t.TempDir()
	if err := Initialize(root, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	l := Get(CategoryBoot)
	l.Info("should not panic or write anything")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]int{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %d, want %d", input, got, want)
		}
	}
}
