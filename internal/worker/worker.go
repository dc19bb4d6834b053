// Package worker implements the per-plugin supervised child process
// (spec.md 3, 4.3, 5): spawn-on-demand, pipe I/O, crash detection, restart
// on next use, and teardown of the child on every transition to Absent
// (see transitionAbsent).
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/opendesk/launcherd/internal/descriptor"
	"github.com/opendesk/launcherd/internal/launchlog"
	"github.com/opendesk/launcherd/internal/wire"
)

// ErrAbsent is returned by Send when the worker has no live child and a
// spawn was not requested. A failed spawn returns the wrapped spawn error
// instead.
var ErrAbsent = errors.New("worker: plugin is absent")

// Output is one PluginResponse tagged with the worker and the epoch that
// was current when it spawned — late output after a restart carries a
// stale epoch and is the session's signal to drop it (spec.md 3, 4.4).
type Output struct {
	WorkerID string
	Epoch    uint64
	Msg      wire.PluginResponse
}

// Done is sent once, in place of (or instead of waiting for) a Finished
// PluginResponse, when the worker transitions back to absent — child exit,
// stdout EOF, or a failed stdin write (spec.md 4.3 "Live -> Absent").
type Done struct {
	WorkerID string
	Epoch    uint64
}

// Transport abstracts the spawned child's pipes so tests can substitute an
// in-process fake without starting a real process, while production code
// always goes through spawnProcess.
type Transport interface {
	io.Writer
	// Lines is closed when the transport's stdout reaches EOF or errors.
	Lines() <-chan []byte
	// Wait blocks until the child exits (or the fake transport is closed).
	Wait() error
	Close() error
}

// processTransport is the real os/exec-backed Transport.
type processTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	corrID string
}

func spawnProcess(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (*processTransport, error) {
	cmd := exec.CommandContext(ctx, d.ExecPath)
	cmd.Dir, _ = os.Getwd()
	cmd.Env = os.Environ()
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("worker: stdout pipe: %w", err)
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("worker: start %s: %w", d.ExecPath, err)
	}

	t := &processTransport{cmd: cmd, stdin: stdin, lines: make(chan []byte, 16), corrID: corrID}
	go t.readLoop(stdout)
	return t, nil
}

func (t *processTransport) readLoop(stdout io.ReadCloser) {
	defer close(t.lines)
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		out := make([]byte, len(line))
		copy(out, line)
		t.lines <- out
	}
}

func (t *processTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }
func (t *processTransport) Lines() <-chan []byte         { return t.lines }
func (t *processTransport) Wait() error                  { return t.cmd.Wait() }

func (t *processTransport) Close() error {
	var firstErr error
	if err := t.stdin.Close(); err != nil {
		firstErr = err
	}
	killProcessGroup(t.cmd)
	return firstErr
}

// Worker is the runtime state for one plugin: spawn lazily, respawn
// transparently through Absent on crash, never in place.
type Worker struct {
	ID         string
	Descriptor descriptor.PluginDescriptor
	CorrID     string

	mu       sync.Mutex
	epoch    uint64
	live     bool
	t        Transport
	spawn    func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (Transport, error)
	outputs  chan<- Output
	dones    chan<- Done
	stopOnce sync.Once
}

// New creates a Worker in the Absent state. outputs and dones are the
// service loop's shared event channels; each spawn (via Send or
// EnsureSpawned) starts the background reader that feeds them.
func New(id string, d descriptor.PluginDescriptor, outputs chan<- Output, dones chan<- Done) *Worker {
	return &Worker{
		ID:         id,
		Descriptor: d,
		CorrID:     uuid.New().String(),
		outputs:    outputs,
		dones:      dones,
		spawn: func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (Transport, error) {
			return spawnProcess(ctx, d, corrID)
		},
	}
}

// WithTransport overrides the spawn function, for tests.
func (w *Worker) WithTransport(fn func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (Transport, error)) *Worker {
	w.spawn = fn
	return w
}

// Epoch returns the worker's current epoch.
func (w *Worker) Epoch() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.epoch
}

// IsLive reports whether the worker currently has a live child.
func (w *Worker) IsLive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

// EnsureSpawned spawns the child if absent. No-op if already live.
func (w *Worker) EnsureSpawned(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.live {
		return nil
	}
	return w.spawnLocked(ctx)
}

func (w *Worker) spawnLocked(ctx context.Context) error {
	t, err := w.spawn(ctx, w.Descriptor, w.CorrID)
	if err != nil {
		launchlog.Warn().Err(err).Str("plugin", w.ID).Msg("plugin spawn failed")
		return err
	}
	w.t = t
	w.live = true
	epoch := w.epoch
	go w.readLoop(t, epoch)
	launchlog.Info().Str("plugin", w.ID).Str("corr", w.CorrID).Uint64("epoch", epoch).Msg("plugin spawned")
	return nil
}

// Send forwards req to the live child, spawning it first if absent and
// spawnIfAbsent is true. A write failure drops the worker to Absent and
// reports synthetic completion, per spec.md 4.3/7.
func (w *Worker) Send(ctx context.Context, req wire.Request, spawnIfAbsent bool) error {
	w.mu.Lock()
	if !w.live {
		if !spawnIfAbsent {
			w.mu.Unlock()
			return ErrAbsent
		}
		if err := w.spawnLocked(ctx); err != nil {
			// Bump the epoch as transitionAbsent does, so the Done below
			// is tagged like any other Absent transition.
			epoch := w.epoch
			w.epoch++
			w.mu.Unlock()
			w.reportDone(epoch)
			return fmt.Errorf("worker: spawn %s: %w", w.ID, err)
		}
	}
	t := w.t
	epoch := w.epoch
	w.mu.Unlock()

	data, err := marshalLine(req)
	if err != nil {
		return fmt.Errorf("worker: marshal request: %w", err)
	}
	if _, err := t.Write(data); err != nil {
		launchlog.Warn().Err(err).Str("plugin", w.ID).Msg("stdin write failed, dropping worker")
		w.transitionAbsent(epoch)
		return fmt.Errorf("worker: write to %s: %w", w.ID, err)
	}
	return nil
}

func marshalLine(req wire.Request) ([]byte, error) {
	b, err := reqMarshalJSON(req)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// readLoop demultiplexes one worker's stdout into the shared outputs
// channel, tagging every message with this spawn's epoch. Results for a
// superseded epoch are still emitted here; the session router is
// responsible for discarding them (spec.md 4.4's generation check lives one
// level up — the worker doesn't know about generations, only its own
// epoch).
func (w *Worker) readLoop(t Transport, epoch uint64) {
	for line := range t.Lines() {
		var msg wire.PluginResponse
		if err := msg.UnmarshalJSON(line); err != nil {
			launchlog.Warn().Err(err).Str("plugin", w.ID).Bytes("line", line).Msg("discarding unparsable plugin output")
			continue
		}
		if w.outputs != nil {
			w.outputs <- Output{WorkerID: w.ID, Epoch: epoch, Msg: msg}
		}
	}
	// Reader loop ends on stdout EOF or error: child is gone.
	w.transitionAbsent(epoch)
}

// transitionAbsent moves the worker from Live to Absent exactly once per
// epoch and increments the epoch. It clears the transport field first, then
// closes the transport (stdin, and the process group on a real child) and
// reaps the child in a background goroutine. It does not drain stdout; the
// epoch's readLoop keeps consuming it until EOF.
func (w *Worker) transitionAbsent(epoch uint64) {
	w.mu.Lock()
	if !w.live || w.epoch != epoch {
		w.mu.Unlock()
		return // already handled, or this is a stale call for an old spawn
	}
	w.live = false
	w.epoch++
	t := w.t
	w.t = nil
	w.mu.Unlock()

	if t != nil {
		t.Close()
		go t.Wait() // reap; best-effort, Wait may already have been satisfied by Close on fakes
	}

	launchlog.Info().Str("plugin", w.ID).Uint64("epoch", epoch).Msg("plugin worker absent")
	w.reportDone(epoch)
}

func (w *Worker) reportDone(epoch uint64) {
	if w.dones != nil {
		w.dones <- Done{WorkerID: w.ID, Epoch: epoch}
	}
}

// Shutdown sends Exit to a live worker and tears it down, honoring the
// short timeout spec.md 4.5 describes for orderly Exit propagation.
func (w *Worker) Shutdown(ctx context.Context) {
	w.mu.Lock()
	live := w.live
	t := w.t
	epoch := w.epoch
	w.mu.Unlock()
	if !live {
		return
	}

	data, _ := marshalLine(wire.ExitReq())
	t.Write(data) //nolint:errcheck // best-effort; teardown proceeds regardless

	done := make(chan struct{})
	go func() {
		t.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	w.transitionAbsent(epoch)
}

// reqMarshalJSON isolates the wire package's MarshalJSON call so worker.go
// reads as "marshal a request", independent of wire's internal shape.
func reqMarshalJSON(req wire.Request) ([]byte, error) {
	return req.MarshalJSON()
}
