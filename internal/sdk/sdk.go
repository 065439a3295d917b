// Package sdk implements the host SDK surface shared by both embedded
// script hosts (spec §4.8): output, control, user input, progress,
// filesystem, process, archive, and config-file helpers, all gated by
// the executable allow-list and path-access policy.
package sdk

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/yggdrasil-au/remake-engine/internal/event"
	"github.com/yggdrasil-au/remake-engine/internal/logging"
	"github.com/yggdrasil-au/remake-engine/internal/policy"
	"github.com/yggdrasil-au/remake-engine/internal/sdk/sqlitehost"
)

// Sink receives every event the SDK emits. The dispatcher wires this to
// the same onEvent callback a subprocess's events flow through, so
// front-ends see one unified event stream regardless of runnable kind.
type Sink func(ev event.Event)

// Reader supplies one line of input for prompt() when no auto-response
// entry matches. Scripts share the dispatcher's input channel rather
// than reading os.Stdin directly.
type Reader func() (string, error)

// Options configures a Host for one operation run.
type Options struct {
	Sink         Sink
	Input        Reader
	AutoAnswers  map[string]string // preseeded prompt id -> answer (spec §4.8)
	Policy       *policy.Policy
	Paths        *policy.PathPolicy
	PathPrompt   policy.PathPrompt
	StdoutWriter io.Writer // fallback sink target; nil means os.Stdout is never written to directly
}

// Host is one operation's SDK instance — not safe for concurrent runs,
// safe for concurrent calls within a single run (a script host may be
// multi-threaded via goroutine-backed helpers).
type Host struct {
	opts Options
	sql  *sqlitehost.Host

	mu          sync.Mutex
	nextProcID  int64
	background  map[int64]*backgroundProcess
	progressSeq int64
}

// New builds a Host for one operation invocation.
func New(opts Options) *Host {
	return &Host{
		opts:       opts,
		sql:        sqlitehost.New(opts.Paths, opts.PathPrompt),
		background: map[int64]*backgroundProcess{},
	}
}

// Close releases any background processes and sqlite handles still open
// at the end of an operation.
func (h *Host) Close() {
	h.mu.Lock()
	procs := make([]*backgroundProcess, 0, len(h.background))
	for _, p := range h.background {
		procs = append(procs, p)
	}
	h.background = map[int64]*backgroundProcess{}
	h.mu.Unlock()

	for _, p := range procs {
		p.kill()
	}
	h.sql.CloseAll()
}

// SQL exposes the sqlite.* surface (spec §4.8).
func (h *Host) SQL() *sqlitehost.Host { return h.sql }

func (h *Host) emit(ev event.Event) {
	log := logging.Get(logging.CategoryActions)
	if h.opts.Sink != nil {
		h.opts.Sink(ev)
		return
	}
	// Single-emit guarantee (spec §4.8): with no sink installed, fall
	// back to writing the wire-format line to Options.StdoutWriter; with
	// no StdoutWriter either, the event is dropped.
	line, err := event.Encode(ev.Type, ev.Fields)
	if err != nil {
		log.Error("failed to encode event %s: %v", ev.Type, err)
		return
	}
	if h.opts.StdoutWriter != nil {
		fmt.Fprintln(h.opts.StdoutWriter, line)
	}
}

// Print emits a print event (spec §4.8).
func (h *Host) Print(msg string, color string, newline bool) {
	fields := map[string]any{"message": msg, "newline": newline}
	if color != "" {
		fields["color"] = color
	}
	h.emit(event.Event{Type: event.TypePrint, Fields: fields})
}

// Warn emits a warning event.
func (h *Host) Warn(msg string) {
	h.emit(event.Event{Type: event.TypeWarning, Fields: map[string]any{"message": msg}})
}

// Error emits an error event.
func (h *Host) Error(msg string) {
	h.emit(event.Event{Type: event.TypeError, Fields: map[string]any{"message": msg}})
}

// Info emits an informational print event, used internally for the
// auto-response table's two informational lines (spec §4.8).
func (h *Host) Info(msg string) {
	h.Print(msg, "", true)
}

// Success emits a print event styled as a success notice.
func (h *Host) Success(msg string) {
	h.Print(msg, "green", true)
}

// Start emits a start event.
func (h *Host) Start(op string) {
	fields := map[string]any{}
	if op != "" {
		fields["op"] = op
	}
	h.emit(event.Event{Type: event.TypeStart, Fields: fields})
}

// End emits an end event (used by scripts themselves; the runner also
// synthesizes one on subprocess exit, per spec §4.6/§4.8).
func (h *Host) End(success bool, exitCode int) {
	h.emit(event.Event{Type: event.TypeEnd, Fields: map[string]any{
		"success": success, "exit_code": exitCode,
	}})
}

// Prompt requests a line of input, consulting the auto-response table
// first (spec §4.8).
func (h *Host) Prompt(message, id string, secret bool) (string, error) {
	if id != "" {
		if answer, ok := h.opts.AutoAnswers[id]; ok {
			h.Info(fmt.Sprintf("auto-answering prompt %q", id))
			h.Info(fmt.Sprintf("-> %s", maskIfSecret(answer, secret)))
			return answer, nil
		}
	}

	fields := map[string]any{"message": message}
	if id != "" {
		fields["id"] = id
	}
	if secret {
		fields["secret"] = true
	}
	h.emit(event.Event{Type: event.TypePrompt, Fields: fields})

	if h.opts.Input == nil {
		return "", fmt.Errorf("prompt %q: no input channel available", message)
	}
	return h.opts.Input()
}

func maskIfSecret(s string, secret bool) string {
	if !secret {
		return s
	}
	return "******"
}

// ProgressHandle lets a script update a single determinate progress bar.
type ProgressHandle struct {
	host    *Host
	id      string
	total   int
	current int64
	label   string
}

// Progress starts a determinate progress report and returns a handle
// for incremental updates (spec §4.8).
func (h *Host) Progress(total int, id, label string) *ProgressHandle {
	if id == "" {
		id = fmt.Sprintf("progress-%d", atomic.AddInt64(&h.progressSeq, 1))
	}
	ph := &ProgressHandle{host: h, id: id, total: total, label: label}
	h.emit(event.Progress(id, 0, total, label))
	return ph
}

// Update advances current by inc (default 1) and re-emits progress.
func (p *ProgressHandle) Update(inc int) {
	if inc == 0 {
		inc = 1
	}
	current := atomic.AddInt64(&p.current, int64(inc))
	p.host.emit(event.Progress(p.id, int(current), p.total, p.label))
}

// lineReader adapts an io.Reader (e.g. os.Stdin) to a Reader, used by
// developer-CLI front-ends wiring Options.Input.
func lineReader(r io.Reader) Reader {
	scanner := bufio.NewScanner(r)
	return func() (string, error) {
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
}

// NewStdinReader builds a Reader backed by r, suitable for Options.Input.
func NewStdinReader(r io.Reader) Reader {
	return lineReader(r)
}
