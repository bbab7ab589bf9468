package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds a single package manager invocation.
const DefaultTimeout = 10 * time.Minute

const (
	// waitDelay bounds how long output pipes may stay open after the
	// package manager exits or is killed.
	waitDelay     = 2 * time.Second
	maxLineLength = 1024 * 1024
)

// Runner spawns package manager processes.
//
// Child stdout and stderr are logged, never inherited: the native host's own
// stdout carries the protocol stream.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	env     []string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout overrides DefaultTimeout. Zero disables the timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{logger: logger, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes argv and waits for it to exit. A non-zero exit yields an
// *ExitError tagged with op; a start failure yields a *SpawnError.
func (r *Runner) Run(ctx context.Context, op Op, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmdline := strings.Join(argv, " ")
	logger := r.logger.With("command", argv[0], "op", string(op))

	stdout := newLineWriter(func(line string) {
		logger.Debug("package manager output", "output", line)
	})
	stderr := newLineWriter(func(line string) {
		logger.Warn("package manager stderr", "output", line)
	})

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	logger.Info("running package manager", "args", argv[1:])
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &SpawnError{Command: cmdline, Err: err}
	}

	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	elapsed := time.Since(start).Round(time.Millisecond)
	if errors.Is(err, exec.ErrWaitDelay) && ctx.Err() == nil {
		logger.Warn("package manager left processes holding its output open", "duration", elapsed)
		err = nil
	}
	if err == nil {
		logger.Info("package manager finished", "duration", elapsed)
		return nil
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		logger.Error("package manager timed out", "timeout", r.timeout)
		return fmt.Errorf("%s of %s: %w after %s", op, cmdline, ErrTimeout, r.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Error("package manager failed", "exit_code", exitErr.ExitCode(), "duration", elapsed)
		return &ExitError{Op: op, Command: cmdline, Code: exitErr.ExitCode(), Stderr: stderr.Last()}
	}
	return fmt.Errorf("waiting for %s: %w", cmdline, err)
}

// lineWriter splits written bytes into trimmed, non-empty lines.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	last string
	fn   func(string)
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxLineLength {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(p), nil
}

// Flush emits any unterminated final line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

// Last returns the most recent line.
func (w *lineWriter) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *lineWriter) emit(b []byte) {
	if line := strings.TrimSpace(string(b)); line != "" {
		w.last = line
		w.fn(line)
	}
}
