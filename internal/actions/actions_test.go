package actions

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yggdrasil-au/remake-engine/internal/sdk"
)

func TestRun_UnknownActionErrors(t *testing.T) {
	host := sdk.New(sdk.Options{})
	ok, err := Run("not-a-real-action", nil, host)
	if ok || err == nil {
		t.Fatalf("expected unknown action to fail, got ok=%v err=%v", ok, err)
	}
}

func TestRun_DownloadTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "tool.bin")
	host := sdk.New(sdk.Options{})

	ok, err := Run(string(DownloadTools), []string{srv.URL, dest}, host)
	if err != nil || !ok {
		t.Fatalf("download_tools failed: ok=%v err=%v", ok, err)
	}
	data, readErr := os.ReadFile(dest)
	if readErr != nil || string(data) != "binary-content" {
		t.Fatalf("expected downloaded content, got %q err=%v", data, readErr)
	}
}

func TestRun_DownloadToolsRejectsOddArgs(t *testing.T) {
	host := sdk.New(sdk.Options{})
	ok, err := Run(string(DownloadTools), []string{"http://example.invalid/a"}, host)
	if ok || err == nil {
		t.Fatal("expected an odd-length argument list to be rejected")
	}
}

func TestRun_FormatExtractRejectsNonZip(t *testing.T) {
	host := sdk.New(sdk.Options{})
	ok, err := Run(string(FormatExtract), []string{"archive.rar", "/tmp/out"}, host)
	if ok || err == nil {
		t.Fatal("expected a non-zip archive to be rejected")
	}
}

func TestRun_FormatConvert_TOMLToJSON(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.toml")
	dst := filepath.Join(dir, "out.json")
	os.WriteFile(src, []byte("name = \"widget\"\n"), 0o644)

	host := sdk.New(sdk.Options{})
	ok, err := Run(string(FormatConvert), []string{src, dst}, host)
	if err != nil || !ok {
		t.Fatalf("format-convert failed: ok=%v err=%v", ok, err)
	}

	data, readErr := os.ReadFile(dst)
	if readErr != nil {
		t.Fatalf("read converted file: %v", readErr)
	}
	if got := string(data); !strings.Contains(got, `"name"`) || !strings.Contains(got, `"widget"`) {
		t.Fatalf("expected converted JSON to carry over fields, got %q", got)
	}
}

func TestExtractArchive_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	inputDir := filepath.Join(dir, "in")
	outputDir := filepath.Join(dir, "out")
	os.MkdirAll(inputDir, 0o755)

	host := sdk.New(sdk.Options{})

	srcDir := filepath.Join(dir, "payload")
	os.MkdirAll(srcDir, 0o755)
	os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("A"), 0o644)
	if err := host.ArchiveCreate(srcDir, filepath.Join(inputDir, "payload.zip")); err != nil {
		t.Fatalf("archive_create: %v", err)
	}
	os.WriteFile(filepath.Join(inputDir, "readme.txt"), []byte("ignore me"), 0o644)

	ok, err := ExtractArchive("extract-all", "", "", inputDir, outputDir, ".zip", host)
	if err != nil || !ok {
		t.Fatalf("ExtractArchive failed: ok=%v err=%v", ok, err)
	}

	if _, statErr := os.Stat(filepath.Join(outputDir, "payload", "a.txt")); statErr != nil {
		t.Errorf("expected extracted payload contents, stat error: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(outputDir, "readme", "a.txt")); statErr == nil {
		t.Error("expected non-matching extension to be skipped")
	}
}

func TestExtractArchive_ResolvesRelativeDirsAgainstModuleRoot(t *testing.T) {
	dir := t.TempDir()
	moduleRoot := filepath.Join(dir, "module")
	os.MkdirAll(filepath.Join(moduleRoot, "in"), 0o755)

	host := sdk.New(sdk.Options{})

	srcDir := filepath.Join(dir, "payload")
	os.MkdirAll(srcDir, 0o755)
	os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("A"), 0o644)
	if err := host.ArchiveCreate(srcDir, filepath.Join(moduleRoot, "in", "payload.zip")); err != nil {
		t.Fatalf("archive_create: %v", err)
	}

	ok, err := ExtractArchive("extract-all", moduleRoot, "", "in", "out", "", host)
	if err != nil || !ok {
		t.Fatalf("ExtractArchive failed: ok=%v err=%v", ok, err)
	}
	if _, statErr := os.Stat(filepath.Join(moduleRoot, "out", "payload", "a.txt")); statErr != nil {
		t.Errorf("expected extracted contents under module-relative output dir, stat error: %v", statErr)
	}
}
