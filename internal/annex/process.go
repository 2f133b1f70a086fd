package annex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// terminateGrace is how long Terminate waits for a polite shutdown before
// escalating to Kill.
const terminateGrace = 3 * time.Second

// Encoder renders a request value as the single line of text git-annex
// expects on the batch process's stdin (no trailing newline; EncodeLine adds
// it). AddURLRequest/MetadataRequest/RegisterURLRequest all implement it.
type Encoder interface {
	EncodeAnnexLine() ([]byte, error)
}

// Process drives one long-lived `git-annex <command> --batch --json
// --json-error-messages` subprocess, framing stdin writes and stdout reads
// with the BinaryLineCodec and decoding each response line as Resp.
//
// Ported from AnnexProcess in _examples/original_source/src/annex.rs, split
// the same way into an IO half (Chat) and a Terminator half (Wait/Terminate)
// so a caller can run both concurrently under a single scoped lifetime.
type Process[Resp any] struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *Decoder
	reader io.ReadCloser
	stderr *bytes.Buffer

	mu          sync.Mutex
	stdinClosed bool
}

// Start launches the subprocess in cwd (empty means the caller's current
// directory). args are appended after the command name (e.g. "addurl",
// "--batch", "--json", "--json-error-messages").
func Start[Resp any](ctx context.Context, name, cwd string, args ...string) (*Process[Resp], error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cwd
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("annex: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("annex: stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("annex: start %s: %w", name, err)
	}

	return &Process[Resp]{
		cmd:    cmd,
		stdin:  stdin,
		stdout: NewDecoder(0),
		reader: stdout,
		stderr: &stderrBuf,
	}, nil
}

// Send writes one request line to the subprocess's stdin.
func (p *Process[Resp]) Send(req Encoder) error {
	line, err := req.EncodeAnnexLine()
	if err != nil {
		return fmt.Errorf("annex: encode request: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return EncodeLine(p.stdin, line)
}

// Recv blocks until one framed response line has been read and decoded, or
// returns io.EOF once the subprocess has closed stdout.
func (p *Process[Resp]) Recv() (Resp, error) {
	var zero Resp
	buf := make([]byte, 32*1024)
	for {
		frame, ok, err := p.stdout.Next()
		if err != nil {
			// ErrMaxLineLengthExceeded (or any other framing error) is fatal:
			// the decoder recovers its own framing by discarding through the
			// next newline, but the line it dropped may have been a response
			// this worker is still waiting on, so the caller must abort
			// rather than silently resuming as if nothing were lost.
			return zero, fmt.Errorf("annex: decode: %w", err)
		}
		if ok {
			var resp Resp
			if err := json.Unmarshal(frame, &resp); err != nil {
				return zero, fmt.Errorf("annex: decode response %q: %w", frame, err)
			}
			return resp, nil
		}
		n, rerr := p.reader.Read(buf)
		if n > 0 {
			p.stdout.Feed(buf[:n])
		}
		if rerr != nil {
			if rerr == io.EOF {
				if final, ok := p.stdout.Final(); ok {
					var resp Resp
					if err := json.Unmarshal(final, &resp); err != nil {
						return zero, fmt.Errorf("annex: decode final response %q: %w", final, err)
					}
					return resp, nil
				}
			}
			return zero, rerr
		}
	}
}

// Chat sends one request and waits for its matching response. git-annex's
// batch protocols are strictly request/response-ordered per worker, so this
// is safe without correlation ids.
func (p *Process[Resp]) Chat(req Encoder) (Resp, error) {
	var zero Resp
	if err := p.Send(req); err != nil {
		return zero, err
	}
	return p.Recv()
}

// CloseStdin closes the subprocess's stdin, signalling that no more requests
// will arrive; git-annex exits once it has drained any in-flight work.
// Idempotent: a feeder may close stdin itself mid-run (so its reader sees
// EOF and the worker drains), and InContext's teardown also closes it on
// the success path, so a second call here is a no-op rather than an error.
func (p *Process[Resp]) CloseStdin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdinClosed {
		return nil
	}
	p.stdinClosed = true
	return p.stdin.Close()
}

// Wait blocks for the subprocess to exit on its own (after CloseStdin), with
// no timeout.
func (p *Process[Resp]) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("annex: %s exited: %w (stderr: %s)", p.cmd.Path, err, p.stderr.String())
	}
	return nil
}

// Terminate asks the subprocess to stop: close stdin, then send a polite
// termination signal and give it terminateGrace to exit before killing it
// outright. Used on the early-return path of a scoped run, where some other
// worker has already failed and this one's output is no longer wanted.
func (p *Process[Resp]) Terminate() error {
	_ = p.CloseStdin()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	if p.cmd.Process != nil {
		_ = terminateSignal(p.cmd.Process)
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("annex: %s terminated: %w", p.cmd.Path, err)
		}
		return nil
	case <-time.After(terminateGrace):
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-done
		return fmt.Errorf("annex: %s did not exit within %s, killed", p.cmd.Path, terminateGrace)
	}
}

// InContext runs fn with a freshly started Process and guarantees
// deterministic teardown: if fn returns nil, CloseStdin then Wait
// unboundedly for the subprocess to drain and exit; if fn returns an error,
// Terminate it instead so a failing sibling doesn't hang the whole pipeline
// waiting on a worker nobody will feed again.
//
// Mirrors AnnexProcess::in_context in annex.rs.
func InContext[Resp any](ctx context.Context, name, cwd string, args []string, fn func(*Process[Resp]) error) error {
	p, err := Start[Resp](ctx, name, cwd, args...)
	if err != nil {
		return err
	}

	ferr := fn(p)
	if ferr == nil {
		if err := p.CloseStdin(); err != nil {
			return fmt.Errorf("annex: closing stdin for %s: %w", name, err)
		}
		return p.Wait()
	}

	if terr := p.Terminate(); terr != nil {
		return fmt.Errorf("%w (during teardown: %v)", ferr, terr)
	}
	return ferr
}
