package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_FiresOnOpsFileWrite(t *testing.T) {
	root := t.TempDir()
	opsFile := filepath.Join(root, "operations.json")
	if err := os.WriteFile(opsFile, []byte(`{"run-all":[]}`), 0o644); err != nil {
		t.Fatalf("write ops file: %v", err)
	}

	changed := make(chan struct{}, 4)
	watcher, err := Watch(Descriptor{Name: "demo", Root: root, OpsFile: opsFile}, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watcher.Close()

	// Give the watcher goroutine a moment to start selecting before the
	// write, to avoid a racy miss on slow CI filesystems.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(opsFile, []byte(`{"run-all":[],"extra":[]}`), 0o644); err != nil {
		t.Fatalf("rewrite ops file: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onChange to fire after ops file write")
	}
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	opsFile := filepath.Join(root, "operations.json")
	if err := os.WriteFile(opsFile, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write ops file: %v", err)
	}

	changed := make(chan struct{}, 4)
	watcher, err := Watch(Descriptor{Name: "demo", Root: root, OpsFile: opsFile}, func() {
		changed <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer watcher.Close()

	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "unrelated.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}

	select {
	case <-changed:
		t.Fatal("did not expect onChange for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
