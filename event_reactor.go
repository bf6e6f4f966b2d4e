package reactor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
)

// State is the lifecycle state of a Reactor.
type State uint32

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// noCopy makes go vet's copylocks check flag copies of a Reactor, which
// would duplicate ownership of the backend.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Reactor waits on a Backend and dispatches every ready event to the handler
// registered for its handle.
//
// A Reactor is not safe for concurrent use. Register, Modify, Remove and Run
// must all be called from one goroutine; handlers may call Register, Modify
// and Remove from inside Notify.
type Reactor[H comparable, E any] struct {
	_            noCopy
	id           uuid.UUID
	backend      Backend[H, E]
	table        *HandlerMap[H, E]
	armed        int
	state        State
	batch        []Ready[H, E]
	removed      map[H]struct{} // removed while dispatching the current batch
	pollInterval time.Duration
	logger       *Logger
	staleLimiter *catrate.Limiter
}

// New creates a Reactor that owns the backend returned by create. If create
// fails the error matches ErrBackendCreate and wraps the cause.
func New[H comparable, E any](create func() (Backend[H, E], error), opts ...Option) (*Reactor[H, E], error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if create == nil {
		return nil, backendError(ErrBackendCreate, "create", errors.New("nil constructor"))
	}
	backend, err := create()
	if err != nil {
		return nil, backendError(ErrBackendCreate, "create", err)
	}
	if isNilHandler(backend) {
		return nil, backendError(ErrBackendCreate, "create", errors.New("nil backend"))
	}

	id := uuid.New()
	r := &Reactor[H, E]{
		id:           id,
		backend:      backend,
		table:        NewHandlerMap[H, E](backend.Null()),
		state:        StateReady,
		batch:        make([]Ready[H, E], cfg.maxEvents),
		removed:      make(map[H]struct{}),
		pollInterval: cfg.pollInterval,
		logger:       reactorLogger(cfg.logger, id),
		staleLimiter: cfg.staleLimiter,
	}
	r.logger.Debug().
		Int("max_events", cfg.maxEvents).
		Dur("poll_interval", cfg.pollInterval).
		Log("reactor created")
	return r, nil
}

// NewFDReactor creates a file descriptor reactor on a backend of type t.
func NewFDReactor(t BackendType, opts ...Option) (*Reactor[int, Event], error) {
	return New(func() (Backend[int, Event], error) {
		return NewFDBackend(t)
	}, opts...)
}

// NewEpollReactor creates a file descriptor reactor backed by epoll.
func NewEpollReactor(opts ...Option) (*Reactor[int, Event], error) {
	return NewFDReactor(EpollType, opts...)
}

// NewPollReactor creates a file descriptor reactor backed by poll(2).
func NewPollReactor(opts ...Option) (*Reactor[int, Event], error) {
	return NewFDReactor(PollType, opts...)
}

func (r *Reactor[H, E]) usable() error {
	switch r.state {
	case StateReady, StateRunning:
		return nil
	default:
		return ErrClosed
	}
}

// Register arms h with the backend for mask, then records it in the table.
// If arming fails the error matches ErrBackendAdd and nothing is recorded.
func (r *Reactor[H, E]) Register(h Handler[H, E], mask E) error {
	if err := r.usable(); err != nil {
		return err
	}
	handle, err := r.table.identity(h)
	if err != nil {
		return err
	}
	if _, _, ok := r.table.Lookup(handle); ok {
		return ErrAlreadyRegistered
	}
	if err := r.backend.Arm(handle, mask); err != nil {
		r.logger.Debug().
			Str("handle", handleString(handle)).
			Err(err).
			Log("arm failed")
		return backendError(ErrBackendAdd, "arm", err)
	}
	r.table.put(handle, h, mask)
	r.armed++
	delete(r.removed, handle)
	r.logger.Debug().
		Str("handle", handleString(handle)).
		Int("armed", r.armed).
		Log("handler registered")
	return nil
}

// Modify changes the mask h is armed for. On failure the error matches
// ErrBackendModify and the previous mask stays in effect.
func (r *Reactor[H, E]) Modify(h Handler[H, E], mask E) error {
	if err := r.usable(); err != nil {
		return err
	}
	handle, err := r.table.identity(h)
	if err != nil {
		return err
	}
	if _, _, ok := r.table.Lookup(handle); !ok {
		return ErrNotRegistered
	}
	if err := r.backend.Modify(handle, mask); err != nil {
		return backendError(ErrBackendModify, "modify", err)
	}
	return r.table.SetMask(handle, mask)
}

// Remove disarms h and erases its table entry. If disarming fails the error
// matches ErrBackendRemove and the registration is left fully in place, so
// the table and the backend never disagree.
func (r *Reactor[H, E]) Remove(h Handler[H, E]) error {
	if err := r.usable(); err != nil {
		return err
	}
	handle, err := r.table.identity(h)
	if err != nil {
		return err
	}
	if _, _, ok := r.table.Lookup(handle); !ok {
		return ErrNotRegistered
	}
	if err := r.backend.Disarm(handle); err != nil {
		r.logger.Warning().
			Str("handle", handleString(handle)).
			Err(err).
			Log("disarm failed, registration kept")
		return backendError(ErrBackendRemove, "disarm", err)
	}
	if err := r.table.Remove(h); err != nil {
		return err
	}
	r.armed--
	if r.state == StateRunning {
		r.removed[handle] = struct{}{}
	}
	r.logger.Debug().
		Str("handle", handleString(handle)).
		Int("armed", r.armed).
		Log("handler removed")
	return nil
}

// Run dispatches events until no handler is registered or the deadline of
// ctx passes, both of which return nil. A cancelled ctx returns ctx.Err(),
// checked once per wait. Without a deadline each wait is bounded by the poll
// interval. A deadline that has already passed still gets one non-blocking
// poll.
//
// Failed dispatches never stop the loop: notifications for handles removed
// earlier in the same batch are skipped, and a panicking Notify is recovered
// and logged.
func (r *Reactor[H, E]) Run(ctx context.Context) error {
	switch r.state {
	case StateReady:
	case StateRunning:
		return ErrRunning
	default:
		return ErrClosed
	}
	r.state = StateRunning
	defer func() {
		r.state = StateReady
		clear(r.removed)
	}()

	deadline, hasDeadline := ctx.Deadline()
	r.logger.Debug().
		Int("armed", r.armed).
		Log("run started")

	for first := true; r.armed > 0; first = false {
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			r.logger.Debug().Err(err).Log("run cancelled")
			return err
		}
		timeout := r.pollInterval
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				if !first {
					r.logger.Debug().
						Int("armed", r.armed).
						Log("run deadline reached")
					return nil
				}
				remaining = 0
			}
			timeout = min(timeout, remaining)
		}

		n, err := r.backend.Wait(r.batch, timeout)
		if err != nil {
			r.logger.Err().Err(err).Log("backend wait failed")
			return backendError(ErrBackendWait, "wait", err)
		}
		r.dispatch(r.batch[:n])
	}

	r.logger.Debug().Log("run finished, no handlers left")
	return nil
}

// RunFor is Run with a timeout. RunFor(0) handles whatever is ready now.
func (r *Reactor[H, E]) RunFor(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.Run(ctx)
}

// dispatch delivers one batch. The batch is a private copy owned by the
// reactor, so handlers mutating the table can't disturb the iteration.
func (r *Reactor[H, E]) dispatch(batch []Ready[H, E]) {
	clear(r.removed)
	for _, ready := range batch {
		r.dispatchOne(ready)
	}
}

func (r *Reactor[H, E]) dispatchOne(ready Ready[H, E]) {
	defer func() {
		if v := recover(); v != nil {
			r.logPanic(ready.Handle, ready.Event, v)
		}
	}()
	err := r.table.Dispatch(ready.Handle, ready.Event)
	if errors.Is(err, ErrNotRegistered) {
		if _, ok := r.removed[ready.Handle]; !ok {
			r.logStale(ready.Handle, ready.Event)
		}
	}
	// ErrInvalidHandler: the backend reported its own null handle, drop it
}

// Count returns the number of armed handlers.
func (r *Reactor[H, E]) Count() int {
	return r.armed
}

func (r *Reactor[H, E]) State() State {
	return r.state
}

// ID identifies the reactor in log output.
func (r *Reactor[H, E]) ID() uuid.UUID {
	return r.id
}

// Close releases the backend. Handlers still registered are abandoned and a
// warning is logged. Close on a closed reactor does nothing, and Close from
// inside Run fails with ErrRunning.
func (r *Reactor[H, E]) Close() error {
	switch r.state {
	case StateRunning:
		return ErrRunning
	case StateReady:
	default:
		return nil
	}
	if r.armed > 0 {
		r.logger.Warning().
			Int("armed", r.armed).
			Log("closing with registered handlers")
	}
	r.state = StateClosed
	r.batch = nil
	err := r.backend.Close()
	r.logger.Debug().Log("reactor closed")
	return err
}
