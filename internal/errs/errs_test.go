package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors_IsMatchesOnKind(t *testing.T) {
	err := New(UnknownModule, "module %q", "demo")
	if !errors.Is(err, Sentinel(UnknownModule)) {
		t.Fatal("expected errors.Is to match on Kind")
	}
	if errors.Is(err, Sentinel(UnknownOperation)) {
		t.Fatal("expected errors.Is to not match a different Kind")
	}
}

func TestErrors_WrapPreservesCauseForUnwrapAndAs(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(IOError, cause, "write manifest")

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through to the wrapped cause")
	}

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected errors.As to extract *Error")
	}
	if e.Kind != IOError {
		t.Fatalf("expected Kind IOError, got %s", e.Kind)
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(New(DisallowedExecutable, "rm"))
	if !ok || kind != DisallowedExecutable {
		t.Fatalf("expected DisallowedExecutable, got %s ok=%v", kind, ok)
	}

	if _, ok := KindOf(fmt.Errorf("plain error")); ok {
		t.Fatal("expected KindOf to report false for a non-*Error")
	}
}

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	withCause := Wrap(SpawnFailed, fmt.Errorf("exec: not found"), "spawn tool")
	without := New(SpawnFailed, "spawn tool")

	if withCause.Error() == without.Error() {
		t.Fatal("expected cause to change the rendered message")
	}
}
