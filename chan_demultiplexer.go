package reactor

import (
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

var (
	errHandleArmed    = errors.New("chan backend: handle already armed")
	errHandleNotArmed = errors.New("chan backend: handle not armed")
)

// ChanBackend is an in-process backend for transport-level endpoints that
// have no file descriptor, e.g. message sockets or pipes implemented in Go.
// Producers report readiness with Signal, from any goroutine; everything else
// belongs to the goroutine driving the reactor.
//
// Signals are filtered by the armed mask (EventError and EventClose always
// pass), coalesced per handle, and delivered in the order handles first
// became ready. Disarming a handle drops its pending signal and its place in
// that order. EventET and EventOneShot have no effect. The zero value of H
// is the null handle.
type ChanBackend[H comparable] struct {
	mu      sync.Mutex
	armed   map[H]Event
	pending map[H]Event
	order   *queue.Queue
	wake    chan struct{}
	closed  bool
}

func NewChanBackend[H comparable]() *ChanBackend[H] {
	return &ChanBackend[H]{
		armed:   make(map[H]Event),
		pending: make(map[H]Event),
		order:   queue.New(),
		wake:    make(chan struct{}, 1),
	}
}

// Signal reports that handle is ready with ev. It returns false if the
// signal was discarded: backend closed, handle not armed, or no bit of ev
// is of interest.
func (c *ChanBackend[H]) Signal(handle H, ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	mask, ok := c.armed[handle]
	if !ok {
		return false
	}
	bits := ev & (mask | EventError | EventClose) & reportable
	if bits == 0 {
		return false
	}
	if prev, ok := c.pending[handle]; ok {
		c.pending[handle] = prev | bits
		return true
	}
	c.pending[handle] = bits
	c.order.Add(handle)
	c.notify()
	return true
}

// notify must be called with mu held
func (c *ChanBackend[H]) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *ChanBackend[H]) Arm(handle H, mask Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.armed[handle]; ok {
		return errHandleArmed
	}
	c.armed[handle] = mask
	return nil
}

func (c *ChanBackend[H]) Modify(handle H, mask Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.armed[handle]; !ok {
		return errHandleNotArmed
	}
	c.armed[handle] = mask
	return nil
}

func (c *ChanBackend[H]) Disarm(handle H) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.armed[handle]; !ok {
		return errHandleNotArmed
	}
	delete(c.armed, handle)
	if _, ok := c.pending[handle]; ok {
		delete(c.pending, handle)
		c.dequeue(handle)
	}
	return nil
}

// dequeue drops handle from the ready order, keeping order and pending in
// step. Must be called with mu held.
func (c *ChanBackend[H]) dequeue(handle H) {
	for i := c.order.Length(); i > 0; i-- {
		v := c.order.Remove()
		if v.(H) != handle {
			c.order.Add(v)
		}
	}
}

func (c *ChanBackend[H]) Wait(events []Ready[H, Event], timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var (
		timer    *time.Timer
		deadline <-chan time.Time
	)
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	c.mu.Lock()
	for len(c.pending) == 0 {
		if c.closed {
			c.mu.Unlock()
			return 0, ErrClosed
		}
		if timeout == 0 {
			c.mu.Unlock()
			return 0, nil
		}
		c.mu.Unlock()
		select {
		case <-c.wake:
		case <-deadline:
			return 0, nil
		}
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	count := 0
	for count < len(events) && c.order.Length() > 0 {
		handle := c.order.Remove().(H)
		bits := c.pending[handle]
		delete(c.pending, handle)
		events[count] = Ready[H, Event]{Handle: handle, Event: bits}
		count++
	}
	if len(c.pending) != 0 {
		c.notify()
	}
	return count, nil
}

func (c *ChanBackend[H]) Null() H {
	var null H
	return null
}

func (c *ChanBackend[H]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.wake)
	c.armed = nil
	c.pending = nil
	c.order = queue.New()
	return nil
}
