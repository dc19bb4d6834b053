// Package service implements the Service Loop (spec.md 4.5): the top-level
// reactor owning the frontend pipes, the registry, the set of live workers,
// and the current session.
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/opendesk/launcherd/internal/codec"
	"github.com/opendesk/launcherd/internal/descriptor"
	"github.com/opendesk/launcherd/internal/launchlog"
	"github.com/opendesk/launcherd/internal/registry"
	"github.com/opendesk/launcherd/internal/session"
	"github.com/opendesk/launcherd/internal/wire"
	"github.com/opendesk/launcherd/internal/worker"
)

// ShutdownTimeout bounds how long Exit waits for live workers to shut down
// in an orderly fashion before the service terminates anyway (spec.md 4.5).
const ShutdownTimeout = 2 * time.Second

// SpawnFunc lets tests substitute the worker package's real os/exec-backed
// transport with an in-process fake; production code always passes nil,
// which defers to worker.New's default.
type SpawnFunc func(ctx context.Context, d descriptor.PluginDescriptor, corrID string) (worker.Transport, error)

// Service is the top-level reactor described by spec.md 4.5 and 9: single
// consumer goroutine, fed by a channel of internal events from the
// frontend reader and every live worker's reader, so all shared state
// (registry, worker table, session) is touched from exactly one goroutine
// and needs no locks (spec.md 5's single-threaded model).
type Service struct {
	reg       *registry.Registry
	frontend  *codec.Stream
	spawnFunc SpawnFunc

	workers map[registry.PluginID]*worker.Worker
	outputs chan worker.Output
	dones   chan worker.Done

	generation uint64
	sess       *session.Session

	// genQueue holds, per worker, the FIFO of generations it has been
	// asked to Search for but has not yet finished replying to. A
	// worker's output is attributed to the queue's head — the oldest
	// still-open Search — and Finished/Done pops it. This is what lets
	// the service tell apart stray output from a superseded Search and
	// genuine output for the live one when the same worker is
	// re-queried before it finishes answering the first (spec.md 4.4's
	// "generation observed at dispatch time").
	genQueue map[string][]uint64

	writeMu  sync.Mutex
	fatalErr error // set by emit on a frontend write failure; checked after every reactor turn
}

// New constructs a Service bound to reg and the frontend stream built from
// frontendIn/frontendOut. spawnFunc may be nil for production use.
func New(reg *registry.Registry, frontendIn io.Reader, frontendOut io.Writer, spawnFunc SpawnFunc) *Service {
	return &Service{
		reg:       reg,
		frontend:  codec.NewStream(frontendIn, frontendOut),
		spawnFunc: spawnFunc,
		workers:   make(map[registry.PluginID]*worker.Worker),
		outputs:   make(chan worker.Output, 256),
		dones:     make(chan worker.Done, 64),
		genQueue:  make(map[string][]uint64),
	}
}

// headGen returns the oldest still-open generation for workerID, if any.
func (s *Service) headGen(workerID string) (uint64, bool) {
	q := s.genQueue[workerID]
	if len(q) == 0 {
		return 0, false
	}
	return q[0], true
}

// popGen removes the oldest still-open generation for workerID, marking its
// Search as answered (Finished or the worker died mid-answer).
func (s *Service) popGen(workerID string) {
	q := s.genQueue[workerID]
	if len(q) == 0 {
		return
	}
	s.genQueue[workerID] = q[1:]
}

// Run drives the reactor until the frontend closes its stream, sends Exit,
// or ctx is cancelled. It returns nil on an orderly shutdown, including
// termination after a frontend write failure, and a non-nil error only when
// reading the frontend stream fails (spec.md 6's exit code contract is
// implemented by the caller inspecting this return value).
func (s *Service) Run(ctx context.Context) error {
	frontendReqs := make(chan wire.Request)
	frontendErrs := make(chan error, 1)
	go s.readFrontend(frontendReqs, frontendErrs)

	for {
		select {
		case <-ctx.Done():
			s.shutdownAllWorkers(context.Background())
			return nil

		case req, ok := <-frontendReqs:
			if !ok {
				s.shutdownAllWorkers(context.Background())
				return nil
			}
			if req.Kind == wire.RequestExit {
				s.shutdownAllWorkers(ctx)
				return nil
			}
			s.handleFrontendRequest(ctx, req)

		case err := <-frontendErrs:
			if err != nil {
				launchlog.Error().Err(err).Msg("frontend stream error, terminating")
			}
			s.shutdownAllWorkers(context.Background())
			return err

		case out := <-s.outputs:
			s.handleWorkerOutput(out)

		case d := <-s.dones:
			s.handleWorkerDone(d)
		}

		if s.fatalErr != nil {
			// Frontend stdout write failed: spec.md 7 "terminate the
			// service" — no further emission is possible so there is
			// nothing left for the reactor to do.
			s.shutdownAllWorkers(context.Background())
			return nil
		}
	}
}

// readFrontend feeds frontendReqs from the frontend codec stream. Malformed
// lines are logged and discarded (spec.md 4.1); a genuine stream error or
// EOF closes frontendReqs.
func (s *Service) readFrontend(out chan<- wire.Request, errs chan<- error) {
	defer close(out)
	for {
		var req wire.Request
		err := s.frontend.ReadValue(&req)
		if err == nil {
			out <- req
			continue
		}
		var perr *codec.ParseError
		if asParseError(err, &perr) {
			launchlog.Warn().Err(err).Msg("discarding unparsable frontend request")
			continue
		}
		if err == io.EOF {
			return
		}
		errs <- err
		return
	}
}

func asParseError(err error, target **codec.ParseError) bool {
	pe, ok := err.(*codec.ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func (s *Service) handleFrontendRequest(ctx context.Context, req wire.Request) {
	switch req.Kind {
	case wire.RequestSearch:
		s.startSearch(ctx, req.Search)
	case wire.RequestInterrupt:
		s.generation++
		s.sess = nil
	case wire.RequestActivate:
		s.forwardByGlobalID(ctx, req.Activate, wire.ActivateReq)
	case wire.RequestComplete:
		s.forwardByGlobalID(ctx, req.Complete, wire.CompleteReq)
	case wire.RequestQuit:
		s.forwardByGlobalID(ctx, req.Quit, wire.QuitReq)
	case wire.RequestContext:
		s.forwardByGlobalID(ctx, req.Context, wire.ContextReq)
	case wire.RequestActivateContext:
		s.forwardActivateContext(ctx, req.ActivateContext)
	default:
		launchlog.Warn().Str("kind", string(req.Kind)).Msg("unexpected frontend request kind")
	}
}

// forwardByGlobalID rewrites a global id to its owning worker's local id
// and forwards mk(local) to that worker. A global id with no current
// mapping is dropped silently (spec.md 7).
func (s *Service) forwardByGlobalID(ctx context.Context, globalID int64, mk func(int64) wire.Request) {
	if s.sess == nil {
		return
	}
	ref, ok := s.sess.Resolve(globalID)
	if !ok {
		return
	}
	w, ok := s.workers[ref.WorkerID]
	if !ok {
		return
	}
	if err := w.Send(ctx, mk(int64(ref.LocalID)), false); err != nil {
		launchlog.Warn().Err(err).Str("plugin", ref.WorkerID).Msg("forward failed")
	}
}

func (s *Service) forwardActivateContext(ctx context.Context, ac wire.ActivateContext) {
	if s.sess == nil {
		return
	}
	ref, ok := s.sess.Resolve(ac.ID)
	if !ok {
		return
	}
	w, ok := s.workers[ref.WorkerID]
	if !ok {
		return
	}
	req := wire.ActivateContextReq(int64(ref.LocalID), ac.Context)
	if err := w.Send(ctx, req, false); err != nil {
		launchlog.Warn().Err(err).Str("plugin", ref.WorkerID).Msg("forward ActivateContext failed")
	}
}

// startSearch increments the generation, selects workers via the registry
// policy, opens a new session, and dispatches Search to every selected
// worker (spawning absent ones), per spec.md 4.5.
func (s *Service) startSearch(ctx context.Context, q string) {
	s.generation++
	gen := s.generation

	selected := s.reg.Select(q)
	sess := session.New(gen, q, selected)
	sess.SetCategoryIconResolver(s.categoryIconFor)
	s.sess = sess

	if len(selected) == 0 {
		s.emitUpdate()
		return
	}

	for _, id := range selected {
		s.genQueue[id] = append(s.genQueue[id], gen)
		w := s.workerFor(id)
		if err := w.Send(ctx, wire.SearchReq(q), true); err != nil {
			// Spawn or write failure: treated as Finished with no items
			// for this generation (spec.md 7); worker.Send already
			// reported a Done on the shared channel in that case.
			launchlog.Warn().Err(err).Str("plugin", id).Msg("search dispatch failed")
		}
	}
}

func (s *Service) categoryIconFor(workerID string) *wire.Icon {
	d, ok := s.reg.Get(workerID)
	if !ok {
		return nil
	}
	isMime, v := d.CategoryIconParts()
	if v == "" {
		return nil
	}
	if isMime {
		return wire.MimeIcon(v)
	}
	return wire.NameIcon(v)
}

// workerFor returns the worker for id, creating it (in the Absent state)
// on first reference — spec.md 3 "Created lazily on first use".
func (s *Service) workerFor(id registry.PluginID) *worker.Worker {
	if w, ok := s.workers[id]; ok {
		return w
	}
	d, _ := s.reg.Get(id)
	w := worker.New(id, d, s.outputs, s.dones)
	if s.spawnFunc != nil {
		w.WithTransport(s.spawnFunc)
	}
	s.workers[id] = w
	return w
}

// handleWorkerOutput routes one tagged PluginResponse. Output whose epoch
// no longer matches its worker's current epoch is stale — dropped
// silently, since the worker has already restarted (spec.md 3). Output
// whose session generation has been superseded is likewise dropped
// (spec.md 4.4's "sole mechanism that implements cancellation").
func (s *Service) handleWorkerOutput(out worker.Output) {
	w, ok := s.workers[out.WorkerID]
	if !ok || w.Epoch() != out.Epoch {
		return
	}
	// Append/Clear/Finished are attributed to the oldest Search this
	// worker hasn't yet answered (genQueue's head); they only land in the
	// live session when that attributed generation is still current
	// (spec.md 4.4's dispatch-time generation tagging — see genQueue's
	// doc comment for why plain worker-selection membership isn't
	// enough). Close/DesktopEntry/Fill/Context are bypass responses a
	// plugin can send at any time and are always forwarded regardless.
	attributedGen, hasGen := s.headGen(out.WorkerID)
	live := hasGen && attributedGen == s.generation && s.sess != nil && s.sessionAwaits(out.WorkerID)

	switch out.Msg.Kind {
	case wire.PluginResponseAppend:
		if live {
			s.sess.Append(out.WorkerID, out.Msg.Append)
		}
	case wire.PluginResponseClear:
		if live {
			s.sess.Clear()
		}
	case wire.PluginResponseFinished:
		s.popGen(out.WorkerID)
		if live {
			s.finishWorker(out.WorkerID)
		}
	case wire.PluginResponseClose:
		s.emit(wire.CloseResp())
	case wire.PluginResponseDesktopEntry:
		s.emit(wire.DesktopEntryResp(out.Msg.DesktopEntry))
	case wire.PluginResponseFill:
		s.emit(wire.FillResp(out.Msg.Fill))
	case wire.PluginResponseContext:
		global := s.rewriteContextToGlobal(out.WorkerID, out.Msg.Context)
		s.emit(wire.ContextResp(global))
	}
}

// rewriteContextToGlobal turns a plugin-local Context payload's id into the
// current session's global id for the same (worker, local) pair, per
// spec.md 4.4's "Context{id,options}" bypass rule. If the local id has no
// global mapping yet (context requested for an item not yet finalized),
// the id is forwarded unchanged — this can only happen for a Context
// response unrelated to the session's own items, which the frontend did
// not request through a global id in the first place.
func (s *Service) rewriteContextToGlobal(workerID string, c wire.ContextPayload) wire.ContextPayload {
	if s.sess == nil {
		return c
	}
	// Context payload ids from a plugin are the plugin's own item id; find
	// it among already-finalized mappings if present.
	for gid := int64(0); ; gid++ {
		ref, ok := s.sess.Resolve(gid)
		if !ok {
			break
		}
		if ref.WorkerID == workerID && int64(ref.LocalID) == c.ID {
			c.ID = gid
			return c
		}
	}
	return c
}

func (s *Service) sessionAwaits(workerID string) bool {
	for _, id := range s.sess.Selected() {
		if id == workerID {
			return true
		}
	}
	return false
}

// finishWorker marks workerID finished for the live session and, once
// every selected worker is done, ranks and emits the single Update
// (spec.md 4.4 "Completion"/"Emission").
func (s *Service) finishWorker(workerID string) {
	if s.sess == nil {
		return
	}
	if s.sess.MarkFinished(workerID) {
		s.emitUpdate()
	}
}

// handleWorkerDone handles a worker's crash/absent transition: same
// disposition as an explicit Finished for whichever generation it was
// still answering (spec.md 4.3 "Crash policy").
//
// Done.Epoch is tagged with the epoch of the spawn that just died — worker
// transitionAbsent increments the live epoch before calling reportDone, so
// by the time this arrives here the worker's current epoch is always
// exactly d.Epoch+1, unless a further crash has already happened in the
// meantime (then it's strictly greater). A Done can still be sitting in
// the buffered dones channel after the worker has already respawned and
// been re-selected for a newer generation, so this is guarded the same way
// handleWorkerOutput guards on w.Epoch() before touching any state: a
// worker that has moved on to a later epoch (a second crash already
// superseded this report) is left alone entirely. And even when this
// report is current, only the genQueue head the dead spawn was actually
// answering is popped — not the whole queue — so a generation already
// queued for a same-epoch respawn survives.
func (s *Service) handleWorkerDone(d worker.Done) {
	w, ok := s.workers[d.WorkerID]
	if !ok || w.Epoch() != d.Epoch+1 {
		return
	}

	attributedGen, hasGen := s.headGen(d.WorkerID)
	if hasGen {
		s.popGen(d.WorkerID)
	}

	live := hasGen && attributedGen == s.generation && s.sess != nil && s.sessionAwaits(d.WorkerID)
	if live {
		s.finishWorker(d.WorkerID)
	}
}

func (s *Service) emitUpdate() {
	if s.sess == nil {
		s.emit(wire.UpdateResp(nil))
		return
	}
	items := s.sess.Finalize(s.noSortFor)
	s.emit(wire.UpdateResp(items))
}

func (s *Service) noSortFor(workerID string) bool {
	d, ok := s.reg.Get(workerID)
	return ok && d.Query.NoSort
}

// emit writes resp to the frontend. A write failure terminates the service
// per spec.md 7 ("Frontend stdout write failure — terminate the service"):
// it is recorded on fatalErr, which Run checks after every reactor turn.
func (s *Service) emit(resp wire.Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.frontend.Emit(resp); err != nil {
		launchlog.Error().Err(err).Msg("frontend write failed, terminating")
		s.fatalErr = err
	}
}

// shutdownAllWorkers propagates Exit to every live worker and awaits their
// orderly shutdown up to ShutdownTimeout (spec.md 4.5).
func (s *Service) shutdownAllWorkers(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, w := range s.workers {
		if !w.IsLive() {
			continue
		}
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Shutdown(shutdownCtx)
		}(w)
	}
	wg.Wait()
}
