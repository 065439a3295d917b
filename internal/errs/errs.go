// Package errs defines the error taxonomy shared across the operation
// execution engine (spec §7). Every error returned by an internal package
// wraps one of these kinds so callers can classify failures with errors.Is
// / errors.As without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one entry of the error taxonomy.
type Kind string

const (
	NoModuleLoaded      Kind = "NoModuleLoaded"
	UnknownModule       Kind = "UnknownModule"
	UnknownOperation    Kind = "UnknownOperation"
	UnknownScriptType   Kind = "UnknownScriptType"
	UnknownAction       Kind = "UnknownAction"
	ParseError          Kind = "ParseError"
	InvalidDependency   Kind = "InvalidDependency"
	DisallowedExecutable Kind = "DisallowedExecutable"
	DisallowedPath      Kind = "DisallowedPath"
	PathDenied          Kind = "PathDenied"
	SpawnFailed         Kind = "SpawnFailed"
	Timeout             Kind = "Timeout"
	Cancelled           Kind = "Cancelled"
	IOError             Kind = "IOError"
	ScriptError         Kind = "ScriptError"
	ActionError         Kind = "ActionError"
)

// Error is a Kind wrapping an optional cause and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind, so errors.Is(err, errs.New(SomeKind, "")) works
// without comparing messages or causes.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with no cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error carrying cause as its Unwrap target.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel returns a zero-message *Error usable as an errors.Is target,
// e.g. errors.Is(err, errs.Sentinel(errs.UnknownModule)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
