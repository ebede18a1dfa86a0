package v4l2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeProc stands in for an ffmpeg process. Its stdout is fed by the test;
// stdin, when requested, is collected and the process exits cleanly at EOF.
type fakeProc struct {
	name string
	args []string
	out  *io.PipeWriter

	mu      sync.Mutex
	stdin   bytes.Buffer
	exitErr error
	exited  chan struct{}
	once    sync.Once
}

func (p *fakeProc) exit(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		p.out.Close()
		close(p.exited)
	})
}

func (p *fakeProc) input() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.stdin.Bytes()...)
}

type fakeStarter struct {
	mu    sync.Mutex
	procs []*fakeProc
	fail  error
	ready chan *fakeProc
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{ready: make(chan *fakeProc, 16)}
}

func (s *fakeStarter) start(ctx context.Context, name string, args []string, withStdin bool) (*process, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	outR, outW := io.Pipe()
	fp := &fakeProc{name: name, args: args, out: outW, exited: make(chan struct{})}
	p := &process{stdout: outR}

	if withStdin {
		inR, inW := io.Pipe()
		p.stdin = inW
		go func() {
			buf := make([]byte, 4096)
			for {
				n, err := inR.Read(buf)
				if n > 0 {
					fp.mu.Lock()
					fp.stdin.Write(buf[:n])
					fp.mu.Unlock()
				}
				if err != nil {
					fp.exit(nil)
					return
				}
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			fp.exit(errors.New("signal: killed"))
		case <-fp.exited:
		}
	}()

	p.wait = func() error {
		<-fp.exited
		fp.mu.Lock()
		defer fp.mu.Unlock()
		return fp.exitErr
	}

	s.mu.Lock()
	s.procs = append(s.procs, fp)
	s.mu.Unlock()
	s.ready <- fp
	return p, nil
}

func (s *fakeStarter) next(t *testing.T) *fakeProc {
	t.Helper()
	select {
	case p := <-s.ready:
		return p
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for process start")
		return nil
	}
}

func jpegFrame(payload ...byte) []byte {
	f := []byte{0xFF, 0xD8}
	f = append(f, payload...)
	return append(f, 0xFF, 0xD9)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
