// Package event defines the structured-event wire format shared by child
// processes and embedded scripts: a line prefixed with "@@REMAKE@@ "
// followed by a single-line JSON object (spec §4.8, §6).
package event

import (
	"encoding/json"
	"strings"
)

// Prefix is the literal event-line marker, including its trailing space.
const Prefix = "@@REMAKE@@ "

// Reserved event type names consumed by front-ends (spec §4.8).
const (
	TypePrint    = "print"
	TypeWarning  = "warning"
	TypeError    = "error"
	TypePrompt   = "prompt"
	TypeProgress = "progress"
	TypeStart    = "start"
	TypeEnd      = "end"
)

// Event is a decoded structured-event payload. Event always holds the
// "event" key; Fields holds every other key verbatim so unknown events
// can be forwarded without loss (spec §4.8: "Unknown events are
// forwarded verbatim").
type Event struct {
	Type   string
	Fields map[string]any
}

// Get returns a named field, defaulting to zero-value/false when absent.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// String returns a field coerced to string, or "" if absent or not a string.
func (e Event) String(key string) string {
	v, ok := e.Fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool returns a field coerced to bool.
func (e Event) Bool(key string) bool {
	v, ok := e.Fields[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Encode serializes an event to a complete "@@REMAKE@@ {...}" line,
// without a trailing newline.
func Encode(eventType string, fields map[string]any) (string, error) {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["event"] = eventType

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return Prefix + string(data), nil
}

// Line splits a raw line read from a child process into either an Event
// (ok=true) or plain output (ok=false); malformed JSON after the prefix
// is treated as plain output rather than a parse failure, since the
// protocol is advisory and a child may legitimately print the prefix
// as ordinary text.
func Line(raw string) (Event, bool) {
	if !strings.HasPrefix(raw, Prefix) {
		return Event{}, false
	}
	body := raw[len(Prefix):]

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Event{}, false
	}
	rawType, ok := fields["event"]
	if !ok {
		return Event{}, false
	}
	typ, ok := rawType.(string)
	if !ok {
		return Event{}, false
	}
	delete(fields, "event")
	return Event{Type: typ, Fields: fields}, true
}

// End synthesizes the final event the runner emits on child exit
// (spec §4.6, §4.8).
func End(exitCode int, success bool) Event {
	return Event{
		Type: TypeEnd,
		Fields: map[string]any{
			"exit_code": exitCode,
			"success":   success,
		},
	}
}

// Error synthesizes an error event carrying a human-readable message,
// used for runtime failures that never reached a child process (spec
// §4.6: "Runtime failures ... surface a synthetic event:\"error\"").
func Error(message string) Event {
	return Event{
		Type:   TypeError,
		Fields: map[string]any{"message": message},
	}
}

// Progress synthesizes a progress event.
func Progress(id string, current, total int, label string) Event {
	fields := map[string]any{
		"id":      id,
		"current": current,
		"total":   total,
	}
	if label != "" {
		fields["label"] = label
	}
	return Event{Type: TypeProgress, Fields: fields}
}
