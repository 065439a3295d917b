package lua

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/sdk"
	"github.com/yggdrasil-au/remake-engine/internal/toolmap"
)

func emptyTools(t *testing.T) *toolmap.Map {
	t.Helper()
	tm, err := toolmap.Load(filepath.Join(t.TempDir(), "missing-tools.json"))
	if err != nil {
		t.Fatalf("toolmap.Load: %v", err)
	}
	return tm
}

func TestRun_ArgvBinding(t *testing.T) {
	var got []event.Event
	host := sdk.New(sdk.Options{Sink: func(ev event.Event) { got = append(got, ev) }})

	ok, err := Run(`emit(argv[1] .. ":" .. argv[2])`, []string{"hello", "world"}, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].String("message") != "hello:world" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestRun_ToolResolution(t *testing.T) {
	dir := t.TempDir()
	toolsPath := filepath.Join(dir, "tools.json")
	os.WriteFile(toolsPath, []byte(`{"ffmpeg": "/opt/bin/ffmpeg"}`), 0o644)
	tools, err := toolmap.Load(toolsPath)
	if err != nil {
		t.Fatalf("toolmap.Load: %v", err)
	}

	var got []event.Event
	host := sdk.New(sdk.Options{Sink: func(ev event.Event) { got = append(got, ev) }})

	ok, err := Run(`emit(tool("ffmpeg"))`, nil, host, tools)
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].String("message") != "/opt/bin/ffmpeg" {
		t.Fatalf("unexpected resolve: %+v", got)
	}
}

func TestRun_EmitWarnErrorMapToEvents(t *testing.T) {
	var got []event.Event
	host := sdk.New(sdk.Options{Sink: func(ev event.Event) { got = append(got, ev) }})

	ok, err := Run(`
		emit("hi")
		warn("careful")
		error("boom")
	`, nil, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != event.TypePrint || got[1].Type != event.TypeWarning || got[2].Type != event.TypeError {
		t.Fatalf("unexpected event types: %+v", got)
	}
}

func TestRun_PromptAutoAnswer(t *testing.T) {
	var got []event.Event
	host := sdk.New(sdk.Options{
		AutoAnswers: map[string]string{"name": "Ada"},
		Sink:        func(ev event.Event) { got = append(got, ev) },
	})

	ok, err := Run(`
		answer = prompt("your name?", "name")
		emit(answer)
	`, nil, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	last := got[len(got)-1]
	if last.String("message") != "Ada" {
		t.Fatalf("expected auto-answered prompt, got %+v", got)
	}
}

func TestRun_ProgressHandleUpdate(t *testing.T) {
	var got []event.Event
	host := sdk.New(sdk.Options{Sink: func(ev event.Event) { got = append(got, ev) }})

	ok, err := Run(`
		p = progress(10, "job", "working")
		p.update(3)
		p.update()
	`, nil, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 {
		t.Fatalf("expected start + 2 updates, got %d", len(got))
	}
	cur, _ := got[2].Get("current")
	if cur != 4 {
		t.Fatalf("expected cumulative current=4, got %v", cur)
	}
}

func TestRun_SDKFilesystemHelpers(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	os.WriteFile(src, []byte("payload"), 0o644)
	dst := filepath.Join(dir, "out", "dst.txt")

	host := sdk.New(sdk.Options{})

	ok, err := Run(`
		local success, errMsg = sdk.copy_file(argv[1], argv[2])
		if not success then
			error(errMsg)
		end
	`, []string{src, dst}, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("expected copied file, got %q err=%v", data, err)
	}
}

func TestRun_SQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")

	var got []event.Event
	host := sdk.New(sdk.Options{Sink: func(ev event.Event) { got = append(got, ev) }})

	ok, err := Run(`
		local handle = sqlite.open(argv[1])
		sqlite.exec(handle, "create table kv (k text, v text)")
		sqlite.exec(handle, "insert into kv (k, v) values (?, ?)", "greeting", "hello")
		local rows = sqlite.query(handle, "select v from kv where k = ?", "greeting")
		emit(rows[1].v)
		sqlite.close(handle)
	`, []string{dbPath}, host, emptyTools(t))
	if err != nil || !ok {
		t.Fatalf("Run failed: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].String("message") != "hello" {
		t.Fatalf("unexpected sqlite round trip: %+v", got)
	}
}

func TestRun_ScriptErrorPropagates(t *testing.T) {
	host := sdk.New(sdk.Options{})

	ok, err := Run(`this is not valid lua (`, nil, host, emptyTools(t))
	if ok {
		t.Fatal("expected ok=false for a malformed script")
	}
	if err == nil {
		t.Fatal("expected a wrapped script error")
	}
}

func TestRun_SandboxBlocksFileIO(t *testing.T) {
	host := sdk.New(sdk.Options{})

	ok, err := Run(`dofile("/etc/passwd")`, nil, host, emptyTools(t))
	if ok {
		t.Fatal("expected dofile to be nil'd out and calling it to fail")
	}
	if err == nil {
		t.Fatal("expected a script error from calling a nil global")
	}
}
