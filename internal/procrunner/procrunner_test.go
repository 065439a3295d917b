package procrunner

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/policy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestExecute_DisallowedExecutableRefusesToSpawn(t *testing.T) {
	p := policy.New(nil, nil)
	var outputs []string
	ok := Execute(context.Background(), []string{"cp", "a", "b"}, "copy", p, Options{
		OnOutput: func(line, stream string) { outputs = append(outputs, line) },
	})
	if ok {
		t.Fatal("expected disallowed executable to fail")
	}
	if len(outputs) != 1 {
		t.Fatalf("expected exactly one output line naming the SDK alternative, got %v", outputs)
	}
}

func TestExecute_StreamsOutputAndSynthesizesEnd(t *testing.T) {
	var mu sync.Mutex
	var outputs []string
	var events []event.Event

	ok := Execute(context.Background(), []string{"sh", "-c", "echo hello"}, "echo", nil, Options{
		OnOutput: func(line, stream string) {
			mu.Lock()
			defer mu.Unlock()
			outputs = append(outputs, line)
		},
		OnEvent: func(ev event.Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		},
	})
	if !ok {
		t.Fatal("expected success")
	}
	if len(outputs) != 1 || outputs[0] != "hello" {
		t.Errorf("expected [\"hello\"], got %v", outputs)
	}
	if len(events) != 1 || events[0].Type != event.TypeEnd || !events[0].Bool("success") {
		t.Errorf("expected a single synthesized success end event, got %+v", events)
	}
}

func TestExecute_ParsesInlineEventLine(t *testing.T) {
	var events []event.Event
	script := `echo '@@REMAKE@@ {"event":"progress","current":3,"total":10}'`
	ok := Execute(context.Background(), []string{"sh", "-c", script}, "progress", nil, Options{
		OnOutput: func(line, stream string) { t.Errorf("unexpected plain output: %q", line) },
		OnEvent:  func(ev event.Event) { events = append(events, ev) },
	})
	if !ok {
		t.Fatal("expected success")
	}
	if len(events) != 2 {
		t.Fatalf("expected progress + synthesized end, got %d events", len(events))
	}
	if events[0].Type != event.TypeProgress {
		t.Errorf("expected first event to be progress, got %q", events[0].Type)
	}
	if events[1].Type != event.TypeEnd {
		t.Errorf("expected final event to be end, got %q", events[1].Type)
	}
}

func TestExecute_NonZeroExitFails(t *testing.T) {
	ok := Execute(context.Background(), []string{"sh", "-c", "exit 3"}, "fail", nil, Options{})
	if ok {
		t.Fatal("expected non-zero exit to report failure")
	}
}

func TestExecute_CancelTerminatesChild(t *testing.T) {
	cancel := make(chan struct{})
	done := make(chan bool, 1)

	go func() {
		done <- Execute(context.Background(), []string{"sh", "-c", "sleep 5"}, "sleep", nil, Options{
			Cancel: cancel,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	close(cancel)

	select {
	case ok := <-done:
		if ok {
			t.Error("expected cancelled process to report failure")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for cancellation to take effect")
	}
}

func TestExecute_PromptFeedsStdin(t *testing.T) {
	script := `echo '@@REMAKE@@ {"event":"prompt","message":"name?","id":"who"}'; read line; echo "got:$line"`
	var outputs []string
	ok := Execute(context.Background(), []string{"sh", "-c", script}, "prompt", nil, Options{
		OnOutput: func(line, stream string) { outputs = append(outputs, line) },
		StdinProvider: func(ev event.Event) (string, error) {
			return "Ada", nil
		},
	})
	if !ok {
		t.Fatal("expected success")
	}
	found := false
	for _, line := range outputs {
		if line == "got:Ada" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected stdin reply to be echoed back, got %v", outputs)
	}
}
