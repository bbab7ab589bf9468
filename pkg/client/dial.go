package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Dialer opens a byte stream to a native host.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (io.ReadWriteCloser, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// ExecDialer launches the host executable the way a browser does: the host
// reads requests on stdin and writes responses on stdout. Stderr is logged.
type ExecDialer struct {
	Path   string
	Args   []string
	Env    []string
	Logger *slog.Logger
	// CloseGrace is how long Close waits for the host to exit after stdin is
	// closed before killing it. Zero means DefaultCloseGrace.
	CloseGrace time.Duration
}

// DefaultCloseGrace bounds how long closing a host stream blocks.
const DefaultCloseGrace = 2 * time.Second

// Dial starts the host process. The process outlives ctx; it ends when the
// returned stream is closed.
func (d *ExecDialer) Dial(_ context.Context) (io.ReadWriteCloser, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.Command(d.Path, d.Args...)
	if len(d.Env) > 0 {
		cmd.Env = append(cmd.Environ(), d.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting native host %s: %w", d.Path, err)
	}
	logger.Debug("native host started", "path", d.Path, "pid", cmd.Process.Pid)

	go logStderr(stderr, logger)

	grace := d.CloseGrace
	if grace <= 0 {
		grace = DefaultCloseGrace
	}
	p := &processStream{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		grace:  grace,
		logger: logger,
		exited: make(chan struct{}),
	}
	go p.reap()
	return p, nil
}

func logStderr(r io.Reader, logger *slog.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			logger.Debug("native host stderr", "output", string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// processStream is the stdin/stdout pair of a running host process.
type processStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	grace  time.Duration
	logger *slog.Logger

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (p *processStream) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *processStream) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

func (p *processStream) reap() {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.waitErr = err
	}
	close(p.exited)
}

// Close ends the session by closing stdin. A host that is still busy after
// the grace period is killed; Close does not wait for it to be reaped.
func (p *processStream) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		timer := time.NewTimer(p.grace)
		defer timer.Stop()
		select {
		case <-p.exited:
			p.closeErr = p.waitErr
		case <-timer.C:
			p.logger.Warn("native host did not exit, killing it", "pid", p.cmd.Process.Pid, "grace", p.grace)
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.closeErr = fmt.Errorf("killing native host: %w", err)
			}
		}
	})
	return p.closeErr
}
