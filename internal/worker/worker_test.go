package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opendesk/launcherd/internal/descriptor"
	"github.com/opendesk/launcherd/internal/wire"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-process Transport stand-in for tests, avoiding a
// real child process while exercising the exact same Worker state machine.
type fakeTransport struct {
	lines     chan []byte
	written   chan []byte
	waitErr   error
	waitCh    chan struct{}
	closeErr  error
	failWrite bool
	linesOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lines:   make(chan []byte, 16),
		written: make(chan []byte, 16),
		waitCh:  make(chan struct{}),
	}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.failWrite {
		return 0, errors.New("fake write failure")
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	f.written <- cp
	return len(p), nil
}
func (f *fakeTransport) Lines() <-chan []byte { return f.lines }
func (f *fakeTransport) Wait() error {
	<-f.waitCh
	return f.waitErr
}
func (f *fakeTransport) Close() error {
	select {
	case <-f.waitCh:
	default:
		close(f.waitCh)
	}
	f.closeLines()
	return f.closeErr
}

// closeLines simulates stdout EOF. It is safe to call more than once, since
// the worker's own teardown closes the transport after a simulated EOF.
func (f *fakeTransport) closeLines() { f.linesOnce.Do(func() { close(f.lines) }) }

func newTestWorker(t *testing.T, ft *fakeTransport) (*Worker, chan Output, chan Done) {
	t.Helper()
	outputs := make(chan Output, 16)
	dones := make(chan Done, 16)
	w := New("calc", descriptor.PluginDescriptor{Name: "Calculator", ExecPath: "calc"}, outputs, dones)
	w.WithTransport(func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (Transport, error) {
		return ft, nil
	})
	return w, outputs, dones
}

func TestWorkerSpawnsLazilyAndDeliversOutput(t *testing.T) {
	ft := newFakeTransport()
	w, outputs, _ := newTestWorker(t, ft)

	require.False(t, w.IsLive())
	require.NoError(t, w.Send(context.Background(), wire.SearchReq("3"), true))
	require.True(t, w.IsLive())

	ft.lines <- []byte(`{"Append":{"id":1,"name":"3","description":""}}`)
	ft.lines <- []byte(`"Finished"`)

	out := <-outputs
	require.Equal(t, "calc", out.WorkerID)
	require.Equal(t, wire.PluginResponseAppend, out.Msg.Kind)

	out = <-outputs
	require.Equal(t, wire.PluginResponseFinished, out.Msg.Kind)
}

func TestWorkerCrashReportsDoneAndBumpsEpoch(t *testing.T) {
	ft := newFakeTransport()
	w, _, dones := newTestWorker(t, ft)

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("x"), true))
	epoch := w.Epoch()

	ft.closeLines() // simulate stdout EOF -> crash

	d := <-dones
	require.Equal(t, "calc", d.WorkerID)
	require.Equal(t, epoch, d.Epoch)
	require.False(t, w.IsLive())
	require.Equal(t, epoch+1, w.Epoch())
}

func TestWorkerWriteFailureDropsToAbsent(t *testing.T) {
	ft := newFakeTransport()
	w, _, dones := newTestWorker(t, ft)

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("x"), true))
	ft.failWrite = true

	err := w.Send(context.Background(), wire.InterruptReq(), false)
	require.Error(t, err)
	require.False(t, w.IsLive())

	select {
	case d := <-dones:
		require.Equal(t, "calc", d.WorkerID)
	case <-time.After(time.Second):
		t.Fatal("expected a Done after write failure")
	}
}

func TestWorkerSendWithoutSpawnIfAbsentFails(t *testing.T) {
	ft := newFakeTransport()
	w, _, _ := newTestWorker(t, ft)

	err := w.Send(context.Background(), wire.InterruptReq(), false)
	require.ErrorIs(t, err, ErrAbsent)
}

func TestWorkerRespawnUsesNewEpoch(t *testing.T) {
	ft1 := newFakeTransport()
	outputs := make(chan Output, 16)
	dones := make(chan Done, 16)
	w := New("calc", descriptor.PluginDescriptor{ExecPath: "calc"}, outputs, dones)

	calls := 0
	transports := []*fakeTransport{ft1, newFakeTransport()}
	w.WithTransport(func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (Transport, error) {
		t := transports[calls]
		calls++
		return t, nil
	})

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("a"), true))
	firstEpoch := w.Epoch()
	ft1.closeLines()
	<-dones

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("b"), true))
	require.Equal(t, firstEpoch+1, w.Epoch())
	require.Equal(t, 2, calls)
}

func TestWorkerDiscardsUnparsableOutput(t *testing.T) {
	ft := newFakeTransport()
	w, outputs, _ := newTestWorker(t, ft)

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("x"), true))
	ft.lines <- []byte(`not json at all`)
	ft.lines <- []byte(`"Finished"`)

	out := <-outputs
	require.Equal(t, wire.PluginResponseFinished, out.Msg.Kind)
}

func TestWorkerShutdownSendsExit(t *testing.T) {
	ft := newFakeTransport()
	w, _, _ := newTestWorker(t, ft)

	require.NoError(t, w.Send(context.Background(), wire.SearchReq("x"), true))
	<-ft.written // the Search we sent

	var exitData []byte
	done := make(chan struct{})
	go func() {
		exitData = <-ft.written
		close(ft.waitCh)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.Shutdown(ctx)
	<-done

	require.Contains(t, string(exitData), "Exit")
	require.False(t, w.IsLive())
}
