package reactor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// selfRemover removes itself on its first notification.
type selfRemover struct {
	countingHandler
	r   *Reactor[int, Event]
	err error
}

func (h *selfRemover) Notify(ev Event) {
	h.countingHandler.Notify(ev)
	h.err = h.r.Remove(h)
}

func TestNew_Errors(t *testing.T) {
	_, err := New[int, Event](nil)
	assert.ErrorIs(t, err, ErrBackendCreate)

	cause := errors.New("no fds left")
	_, err = New(func() (Backend[int, Event], error) { return nil, cause })
	assert.ErrorIs(t, err, ErrBackendCreate)
	assert.ErrorIs(t, err, cause)

	_, err = New(func() (Backend[int, Event], error) { return (*fakeBackend)(nil), nil })
	assert.ErrorIs(t, err, ErrBackendCreate)

	b := newFakeBackend()
	_, err = New(func() (Backend[int, Event], error) { return b, nil }, WithMaxEvents(0))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendCreate)
}

func TestReactor_NewState(t *testing.T) {
	r := newFakeReactor(t, newFakeBackend())
	assert.Equal(t, StateReady, r.State())
	assert.Equal(t, 0, r.Count())
	assert.NotEqual(t, uuid.Nil, r.ID())
	assert.Len(t, r.batch, DefaultMaxEvents)
}

func TestReactor_RegisterArmFailure(t *testing.T) {
	b := newFakeBackend()
	cause := errors.New("arm refused")
	b.armErr = cause
	r := newFakeReactor(t, b)

	err := r.Register(&countingHandler{handle: 4}, EventRead)
	assert.ErrorIs(t, err, ErrBackendAdd)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, r.Count())
	_, _, ok := r.table.Lookup(4)
	assert.False(t, ok)

	b.armErr = nil
	assert.NoError(t, r.Register(&countingHandler{handle: 4}, EventRead))
	assert.Equal(t, 1, r.Count())
}

func TestReactor_RegisterKeepsTableAndBackendInStep(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	h := &countingHandler{handle: 4}
	require.NoError(t, r.Register(h, EventRead|EventClose))

	got, mask, ok := r.table.Lookup(4)
	require.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, EventRead|EventClose, mask)
	assert.Equal(t, EventRead|EventClose, b.armed[4])
	assert.Equal(t, r.table.Count(), r.Count())
	assert.Len(t, b.armed, r.Count())
}

func TestReactor_RegisterDuplicate(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	require.NoError(t, r.Register(&countingHandler{handle: 4}, EventRead))
	assert.ErrorIs(t, r.Register(&countingHandler{handle: 4}, EventWrite), ErrAlreadyRegistered)
	assert.Equal(t, EventRead, b.armed[4])
	assert.Equal(t, 1, r.Count())
}

func TestReactor_RegisterInvalid(t *testing.T) {
	r := newFakeReactor(t, newFakeBackend())
	assert.ErrorIs(t, r.Register(nil, EventRead), ErrInvalidHandler)
	assert.ErrorIs(t, r.Register(&countingHandler{handle: NullFD}, EventRead), ErrInvalidHandler)
	assert.Equal(t, 0, r.Count())
}

func TestReactor_RemoveDisarmFailureKeepsRegistration(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	h := &countingHandler{handle: 6}
	require.NoError(t, r.Register(h, EventRead))

	cause := errors.New("disarm refused")
	b.disarmErr = cause
	err := r.Remove(h)
	assert.ErrorIs(t, err, ErrBackendRemove)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, r.Count())
	assert.Contains(t, b.armed, 6)
	assert.NoError(t, r.table.Dispatch(6, EventRead))
	assert.Equal(t, 1, h.calls)

	b.disarmErr = nil
	require.NoError(t, r.Remove(h))
	assert.Equal(t, 0, r.Count())
	assert.NotContains(t, b.armed, 6)
}

func TestReactor_RemoveNotRegistered(t *testing.T) {
	r := newFakeReactor(t, newFakeBackend())
	assert.ErrorIs(t, r.Remove(&countingHandler{handle: 6}), ErrNotRegistered)
}

func TestReactor_Modify(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	h := &countingHandler{handle: 8}

	assert.ErrorIs(t, r.Modify(h, EventWrite), ErrNotRegistered)

	require.NoError(t, r.Register(h, EventRead))
	require.NoError(t, r.Modify(h, EventRead|EventWrite))
	assert.Equal(t, EventRead|EventWrite, b.armed[8])
	_, mask, _ := r.table.Lookup(8)
	assert.Equal(t, EventRead|EventWrite, mask)

	b.modifyErr = errors.New("nope")
	assert.ErrorIs(t, r.Modify(h, EventWrite), ErrBackendModify)
	_, mask, _ = r.table.Lookup(8)
	assert.Equal(t, EventRead|EventWrite, mask)
}

func TestReactor_RunSelfRemoval(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	h := &selfRemover{countingHandler: countingHandler{handle: 3}, r: r}
	require.NoError(t, r.Register(h, EventRead))
	b.queue(Ready[int, Event]{Handle: 3, Event: EventRead})

	require.NoError(t, r.Run(context.Background()))
	assert.NoError(t, h.err)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, StateReady, r.State())
	assert.Equal(t, 1, b.waits)
}

func TestReactor_RunNoHandlers(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 0, b.waits)
}

func TestReactor_RunForZero(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	h := &countingHandler{handle: 3}
	require.NoError(t, r.Register(h, EventRead))

	start := time.Now()
	require.NoError(t, r.RunFor(0))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, b.waits)
	assert.Equal(t, 1, r.Count())

	b.queue(Ready[int, Event]{Handle: 3, Event: EventRead})
	require.NoError(t, r.RunFor(0))
	assert.Equal(t, 1, h.calls)
}

func TestReactor_RunDeadline(t *testing.T) {
	r := newFakeReactor(t, newFakeBackend(), WithPollInterval(5*time.Millisecond))
	require.NoError(t, r.Register(&countingHandler{handle: 3}, EventRead))

	start := time.Now()
	require.NoError(t, r.RunFor(30*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, 1, r.Count())
}

func TestReactor_RunCancelled(t *testing.T) {
	r := newFakeReactor(t, newFakeBackend(), WithPollInterval(time.Millisecond))
	require.NoError(t, r.Register(&countingHandler{handle: 3}, EventRead))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Equal(t, StateReady, r.State())

	ctx, cancel = context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

func TestReactor_RunWaitError(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	require.NoError(t, r.Register(&countingHandler{handle: 3}, EventRead))
	cause := errors.New("ebadf")
	b.waitErr = cause

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrBackendWait)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StateReady, r.State())
}

func TestReactor_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	b := newFakeBackend()
	r := newFakeReactor(t, b, WithLogger(newTestLogger(&buf)))

	panicker := HandlerFunc(1, func(Event) { panic("handler bug") })
	var after int
	var cleanup FDHandler
	cleanup = HandlerFunc(2, func(Event) {
		after++
		assert.NoError(t, r.Remove(panicker))
		assert.NoError(t, r.Remove(cleanup))
	})
	require.NoError(t, r.Register(panicker, EventRead))
	require.NoError(t, r.Register(cleanup, EventRead))
	b.queue(
		Ready[int, Event]{Handle: 1, Event: EventRead},
		Ready[int, Event]{Handle: 2, Event: EventRead},
	)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, after)
	assert.Contains(t, buf.String(), `"msg":"recovered panic in handler"`)
	assert.Contains(t, buf.String(), `"panic":"handler bug"`)
}

func TestReactor_StaleNotifications(t *testing.T) {
	var buf bytes.Buffer
	b := newFakeBackend()
	r := newFakeReactor(t, b, WithLogger(newTestLogger(&buf)))

	var second FDHandler = &countingHandler{handle: 2}
	first := HandlerFunc(1, func(Event) {
		assert.NoError(t, r.Remove(second))
	})
	require.NoError(t, r.Register(first, EventRead))
	require.NoError(t, r.Register(second, EventRead))
	b.queue(
		Ready[int, Event]{Handle: 1, Event: EventRead},
		Ready[int, Event]{Handle: 2, Event: EventRead},
	)
	require.NoError(t, r.RunFor(0))
	assert.Equal(t, 0, second.(*countingHandler).calls)
	assert.NotContains(t, buf.String(), "dropped notification")

	buf.Reset()
	b.queue(
		Ready[int, Event]{Handle: 42, Event: EventRead},
		Ready[int, Event]{Handle: 42, Event: EventRead},
		Ready[int, Event]{Handle: NullFD, Event: EventRead},
	)
	require.NoError(t, r.RunFor(0))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var warnings, debugs int
	for _, line := range lines {
		if !strings.Contains(line, "dropped notification") {
			continue
		}
		assert.Contains(t, line, `"handle":"42"`)
		switch {
		case strings.Contains(line, `"lvl":"warning"`):
			warnings++
		case strings.Contains(line, `"lvl":"debug"`):
			debugs++
		}
	}
	assert.Equal(t, 1, warnings)
	assert.Equal(t, 1, debugs)
}

func TestReactor_NestedRunAndClose(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	var runErr, closeErr error
	var state State
	var h FDHandler
	h = HandlerFunc(5, func(Event) {
		state = r.State()
		runErr = r.Run(context.Background())
		closeErr = r.Close()
		assert.NoError(t, r.Remove(h))
	})
	require.NoError(t, r.Register(h, EventRead))
	b.queue(Ready[int, Event]{Handle: 5, Event: EventRead})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StateRunning, state)
	assert.ErrorIs(t, runErr, ErrRunning)
	assert.ErrorIs(t, closeErr, ErrRunning)
	assert.Equal(t, 0, b.closeCalls)
}

func TestReactor_RegisterFromHandler(t *testing.T) {
	b := newFakeBackend()
	r := newFakeReactor(t, b)
	child := &selfRemover{countingHandler: countingHandler{handle: 8}, r: r}
	var parent FDHandler
	parent = HandlerFunc(7, func(Event) {
		assert.NoError(t, r.Register(child, EventRead))
		assert.NoError(t, r.Remove(parent))
		b.queue(Ready[int, Event]{Handle: 8, Event: EventRead})
	})
	require.NoError(t, r.Register(parent, EventRead))
	b.queue(Ready[int, Event]{Handle: 7, Event: EventRead})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, child.calls)
	assert.Equal(t, 0, r.Count())
}

func TestReactor_Close(t *testing.T) {
	var buf bytes.Buffer
	b := newFakeBackend()
	r := newFakeReactor(t, b, WithLogger(newTestLogger(&buf)))
	require.NoError(t, r.Register(&countingHandler{handle: 1}, EventRead))

	require.NoError(t, r.Close())
	assert.Equal(t, StateClosed, r.State())
	assert.Equal(t, 1, b.closeCalls)
	assert.Contains(t, buf.String(), "closing with registered handlers")

	require.NoError(t, r.Close())
	assert.Equal(t, 1, b.closeCalls)

	assert.ErrorIs(t, r.Register(&countingHandler{handle: 2}, EventRead), ErrClosed)
	assert.ErrorIs(t, r.Modify(&countingHandler{handle: 1}, EventWrite), ErrClosed)
	assert.ErrorIs(t, r.Remove(&countingHandler{handle: 1}), ErrClosed)
	assert.ErrorIs(t, r.Run(context.Background()), ErrClosed)
}

func TestReactor_LogsReactorID(t *testing.T) {
	var buf bytes.Buffer
	r := newFakeReactor(t, newFakeBackend(), WithLogger(newTestLogger(&buf)))
	assert.Contains(t, buf.String(), `"reactor":"`+r.ID().String()+`"`)
	assert.Contains(t, buf.String(), `"msg":"reactor created"`)
}

func TestReactor_ChanBackend(t *testing.T) {
	cb := NewChanBackend[string]()
	r, err := New(func() (Backend[string, Event], error) { return cb, nil })
	require.NoError(t, err)
	defer r.Close()

	var got []Event
	var h Handler[string, Event]
	h = HandlerFunc("inproc://sensor", func(ev Event) {
		got = append(got, ev)
		assert.NoError(t, r.Remove(h))
	})
	require.NoError(t, r.Register(h, EventRead))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cb.Signal("inproc://sensor", EventRead)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []Event{EventRead}, got)
	assert.Equal(t, 0, r.Count())
}
