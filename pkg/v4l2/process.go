package v4l2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var errInstallHint = errors.New("executable not found, install with: sudo apt install -y ffmpeg v4l-utils")

// process is a started external command whose stdout is read by the caller.
type process struct {
	stdout io.Reader
	stdin  io.WriteCloser
	wait   func() error
}

// startFunc starts name with args. The process is killed when ctx is done.
type startFunc func(ctx context.Context, name string, args []string, withStdin bool) (*process, error)

// outputFunc runs name with args to completion and returns its stdout.
type outputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("running %s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

func execStart(ctx context.Context, name string, args []string, withStdin bool) (*process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &tailWriter{max: 2048}
	cmd.Stderr = stderr

	p := &process{}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p.stdout = stdout
	if withStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		p.stdin = stdin
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errInstallHint
		}
		return nil, fmt.Errorf("starting command %s: %w", name, err)
	}

	p.wait = func() error {
		if err := cmd.Wait(); err != nil {
			if tail := stderr.String(); tail != "" {
				return fmt.Errorf("%s: %w (stderr: %s)", name, err, tail)
			}
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
	return p, nil
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}
