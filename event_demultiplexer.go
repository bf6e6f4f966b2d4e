package reactor

import "time"

// Ready is one entry of a batch returned by Backend.Wait.
type Ready[H comparable, E any] struct {
	Handle H
	Event  E
}

// Backend is the polling primitive a Reactor drives, e.g. epoll, poll(2) or
// a message transport's own poller.
type Backend[H comparable, E any] interface {
	// Arm starts reporting readiness for handle, filtered by mask.
	Arm(handle H, mask E) error
	// Modify replaces the mask of an armed handle.
	Modify(handle H, mask E) error
	// Disarm stops reporting readiness for handle.
	Disarm(handle H) error
	// Wait blocks for at most timeout (forever if negative) and fills events,
	// returning how many entries were written. An interrupted wait returns
	// zero events and no error.
	Wait(events []Ready[H, E], timeout time.Duration) (int, error)
	// Null is the handle value that never identifies a real endpoint.
	Null() H
	Close() error
}

// BackendType selects a file descriptor backend.
type BackendType uint32

const (
	EpollType BackendType = iota + 1
	PollType
)

func (t BackendType) String() string {
	switch t {
	case EpollType:
		return "epoll"
	case PollType:
		return "poll"
	default:
		return "unknown"
	}
}

// NullFD is the null handle of the file descriptor backends.
const NullFD = -1

// NewFDBackend creates a file descriptor backend of type t.
func NewFDBackend(t BackendType) (Backend[int, Event], error) {
	switch t {
	case EpollType:
		e, err := NewEpoll()
		if err != nil {
			return nil, err
		}
		return e, nil
	case PollType:
		p, err := NewPoll()
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, ErrBackendUnsupported
	}
}

// timeoutMillis converts a Wait timeout into the int milliseconds epoll_wait
// and poll expect, rounding up so that short timeouts don't become busy loops.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	const maxMillis = 1<<31 - 1
	if ms > maxMillis {
		ms = maxMillis
	}
	return int(ms)
}
