package sdk

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
	"github.com/yggdrasil-au/remake-engine/internal/procrunner"
)

// ExecOpts configures exec/run_process/spawn_process (spec §4.8).
type ExecOpts struct {
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Exec streams argv's output to the host's sink as it runs, returning
// true iff it exited zero (spec §4.8: "exec(argv, opts) (stream to
// host)").
func (h *Host) Exec(ctx context.Context, argv []string, opts ExecOpts) bool {
	return procrunner.Execute(ctx, argv, "exec", h.opts.Policy, procrunner.Options{
		Dir: opts.Dir,
		Env: opts.Env,
		OnOutput: func(line, stream string) {
			h.Print(line, "", true)
		},
		OnEvent: h.emit,
	})
}

// RunResult is run_process's captured-output return value.
type RunResult struct {
	Stdout  string
	Stderr  string
	Success bool
}

// RunProcess runs argv to completion, capturing (not streaming) its
// output (spec §4.8).
func (h *Host) RunProcess(argv []string, opts ExecOpts) (RunResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var mu sync.Mutex
	var stdout, stderr bytes.Buffer

	success := procrunner.Execute(ctx, argv, "run_process", h.opts.Policy, procrunner.Options{
		Dir: opts.Dir,
		Env: opts.Env,
		OnOutput: func(line, stream string) {
			mu.Lock()
			defer mu.Unlock()
			if stream == "stderr" {
				stderr.WriteString(line + "\n")
			} else {
				stdout.WriteString(line + "\n")
			}
		},
	})

	return RunResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Success: success,
	}, nil
}

// backgroundProcess tracks one spawn_process invocation's live state
// (spec §3's "Managed subprocess").
type backgroundProcess struct {
	mu          sync.Mutex
	stdoutBuf   bytes.Buffer
	stderrBuf   bytes.Buffer
	stdoutCur   int
	stderrCur   int
	exited      bool
	exitCode    int
	cancel      context.CancelFunc
	done        chan struct{}
}

func (p *backgroundProcess) kill() {
	p.cancel()
}

// SpawnProcess starts argv in the background, returning an opaque pid
// (spec §4.8: "spawn_process(argv, opts) -> pid").
func (h *Host) SpawnProcess(argv []string, opts ExecOpts) (int64, error) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &backgroundProcess{cancel: cancel, done: make(chan struct{})}

	id := atomic.AddInt64(&h.nextProcID, 1)
	h.mu.Lock()
	h.background[id] = proc
	h.mu.Unlock()

	go func() {
		defer close(proc.done)
		success := procrunner.Execute(ctx, argv, "spawn_process", h.opts.Policy, procrunner.Options{
			Dir: opts.Dir,
			Env: opts.Env,
			OnOutput: func(line, stream string) {
				proc.mu.Lock()
				defer proc.mu.Unlock()
				if stream == "stderr" {
					proc.stderrBuf.WriteString(line + "\n")
				} else {
					proc.stdoutBuf.WriteString(line + "\n")
				}
			},
		})
		proc.mu.Lock()
		proc.exited = true
		if success {
			proc.exitCode = 0
		} else {
			proc.exitCode = 1
		}
		proc.mu.Unlock()
	}()

	return id, nil
}

// ProcessStatus is poll_process/wait_process's return shape (spec §4.8).
type ProcessStatus struct {
	Running      bool
	Stdout       string
	Stderr       string
	StdoutDelta  string
	StderrDelta  string
	ExitCode     *int
}

// PollProcess returns the current status of pid without blocking, with
// delta reads since the last poll (spec §3: "Cursors enable delta reads
// without losing data").
func (h *Host) PollProcess(pid int64) (ProcessStatus, error) {
	proc, err := h.proc(pid)
	if err != nil {
		return ProcessStatus{}, err
	}
	return proc.snapshot(), nil
}

// WaitProcess blocks until pid exits or timeout elapses, then returns
// its status the same shape as PollProcess.
func (h *Host) WaitProcess(pid int64, timeout time.Duration) (ProcessStatus, error) {
	proc, err := h.proc(pid)
	if err != nil {
		return ProcessStatus{}, err
	}
	if timeout <= 0 {
		<-proc.done
	} else {
		select {
		case <-proc.done:
		case <-time.After(timeout):
		}
	}
	return proc.snapshot(), nil
}

// CloseProcess terminates pid (if still running) and forgets it.
func (h *Host) CloseProcess(pid int64) error {
	h.mu.Lock()
	proc, ok := h.background[pid]
	if ok {
		delete(h.background, pid)
	}
	h.mu.Unlock()
	if !ok {
		return errs.New(errs.IOError, "process handle %d not open", pid)
	}
	proc.kill()
	return nil
}

func (h *Host) proc(pid int64) (*backgroundProcess, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	proc, ok := h.background[pid]
	if !ok {
		return nil, errs.New(errs.IOError, "process handle %d not open", pid)
	}
	return proc, nil
}

func (p *backgroundProcess) snapshot() ProcessStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	stdout := p.stdoutBuf.String()
	stderr := p.stderrBuf.String()
	stdoutDelta := stdout[p.stdoutCur:]
	stderrDelta := stderr[p.stderrCur:]
	p.stdoutCur = len(stdout)
	p.stderrCur = len(stderr)

	status := ProcessStatus{
		Running:     !p.exited,
		Stdout:      stdout,
		Stderr:      stderr,
		StdoutDelta: stdoutDelta,
		StderrDelta: stderrDelta,
	}
	if p.exited {
		code := p.exitCode
		status.ExitCode = &code
	}
	return status
}
