package policy

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

func TestCheckExecutable_BlockedNamesSystemUtility(t *testing.T) {
	p := New(nil, nil)
	ok, reason := p.CheckExecutable("cp")
	if ok {
		t.Fatal("expected cp to be blocked")
	}
	if reason == "" {
		t.Fatal("expected a reason naming the SDK alternative")
	}
}

func TestCheckExecutable_DefaultAllowed(t *testing.T) {
	p := New(nil, nil)
	if ok, _ := p.CheckExecutable("ffmpeg"); !ok {
		t.Error("expected ffmpeg allowed by default")
	}
}

func TestCheckExecutable_UnknownDenied(t *testing.T) {
	p := New(nil, nil)
	if ok, _ := p.CheckExecutable("some_random_binary"); ok {
		t.Error("expected unknown executable denied")
	}
}

func TestCheckExecutable_ToolResolvedAllowed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.json")
	if err := os.WriteFile(path, []byte(`{"blender":"blender.exe"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := toolmap.Load(path)
	if err != nil {
		t.Fatalf("load tool map: %v", err)
	}
	p := New(m, nil)
	if ok, _ := p.CheckExecutable("blender"); !ok {
		t.Error("expected tool-mapped id to be allowed")
	}
}

func TestCheckExecutable_ExtraAllowedAugments(t *testing.T) {
	p := New(nil, []string{"CustomTool"})
	if ok, _ := p.CheckExecutable("customtool"); !ok {
		t.Error("expected extra allow-list entry to match case-insensitively")
	}
}

func forbiddenSample() string {
	if runtime.GOOS == "windows" {
		return `C:\Windows\System32\cmd.exe`
	}
	return "/etc/passwd"
}

// outsideSample returns an absolute path that is not under cwd, temp, home,
// or any forbidden root, so it falls through to the prompt channel.
func outsideSample() string {
	if runtime.GOOS == "windows" {
		return `D:\unrelated\project\file.bin`
	}
	return "/srv/unrelated/project/file.bin"
}

func TestPathPolicy_ForbiddenSystemDir(t *testing.T) {
	p := NewPathPolicy()
	ok, err := p.Check(forbiddenSample(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected forbidden system path denied")
	}
}

func TestPathPolicy_RelativeAlwaysAllowed(t *testing.T) {
	p := NewPathPolicy()
	ok, err := p.Check("relative/file.txt", nil)
	if err != nil || !ok {
		t.Errorf("expected relative path allowed, got ok=%v err=%v", ok, err)
	}
}

func TestPathPolicy_CwdAndConventionalSubfoldersAllowed(t *testing.T) {
	p := NewPathPolicy()
	if ok, _ := p.Check(p.cwd, nil); !ok {
		t.Error("expected cwd itself allowed")
	}
	sub := filepath.Join(p.cwd, "modules", "some-module")
	if ok, _ := p.Check(sub, nil); !ok {
		t.Error("expected conventional subfolder allowed")
	}
}

func TestPathPolicy_TempAndHomeAllowed(t *testing.T) {
	p := NewPathPolicy()
	tmp := filepath.Join(os.TempDir(), "remake-scratch", "x")
	if ok, _ := p.Check(tmp, nil); !ok {
		t.Error("expected temp dir path allowed")
	}
	if home, err := os.UserHomeDir(); err == nil {
		if ok, _ := p.Check(filepath.Join(home, "docs", "x"), nil); !ok {
			t.Error("expected home dir path allowed")
		}
	}
}

func TestPathPolicy_PromptGrantsSessionWide(t *testing.T) {
	p := NewPathPolicy()
	outside := outsideSample()

	calls := 0
	prompt := func(question string) (bool, error) {
		calls++
		return true, nil
	}

	ok, err := p.Check(outside, prompt)
	if err != nil || !ok {
		t.Fatalf("expected granted, got ok=%v err=%v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one prompt, got %d", calls)
	}

	ok2, err2 := p.Check(outside, func(string) (bool, error) {
		t.Fatal("should not prompt again for an already-granted root")
		return false, nil
	})
	if err2 != nil || !ok2 {
		t.Fatalf("expected session-granted path reused, got ok=%v err=%v", ok2, err2)
	}
}

func TestPathPolicy_PromptDenialYieldsFalse(t *testing.T) {
	p := NewPathPolicy()
	outside := outsideSample()
	ok, err := p.Check(outside, func(string) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected denial to yield false")
	}
}

func TestPathPolicy_NoPromptChannelDenies(t *testing.T) {
	p := NewPathPolicy()
	ok, err := p.Check(outsideSample(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected denial when no prompt channel is available")
	}
}
