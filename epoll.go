//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Epoll is the Linux epoll backend. Handles are file descriptors.
type Epoll struct {
	epollFD int
	events  []unix.EpollEvent
}

// NewEpoll creates an epoll instance.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Epoll{epollFD: fd}, nil
}

func (e *Epoll) Arm(fd int, mask Event) error {
	return unix.EpollCtl(e.epollFD, unix.EPOLL_CTL_ADD, fd, eventToEpollEvent(fd, mask))
}

func (e *Epoll) Modify(fd int, mask Event) error {
	return unix.EpollCtl(e.epollFD, unix.EPOLL_CTL_MOD, fd, eventToEpollEvent(fd, mask))
}

func (e *Epoll) Disarm(fd int) error {
	return unix.EpollCtl(e.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
}

func (e *Epoll) Wait(events []Ready[int, Event], timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if len(e.events) < len(events) {
		e.events = make([]unix.EpollEvent, len(events))
	}
	n, err := unix.EpollWait(e.epollFD, e.events[:len(events)], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = Ready[int, Event]{
			Handle: int(e.events[i].Fd),
			Event:  epollEventToEvent(e.events[i].Events),
		}
	}
	return n, nil
}

func (e *Epoll) Null() int {
	return NullFD
}

func (e *Epoll) Close() error {
	if e.epollFD < 0 {
		return nil
	}
	fd := e.epollFD
	e.epollFD = -1
	return unix.Close(fd)
}

func eventToEpollEvent(fd int, mask Event) *unix.EpollEvent {
	ev := unix.EpollEvent{Fd: int32(fd)}
	if mask&EventRead != 0 {
		ev.Events |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if mask&EventWrite != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	if mask&EventClose != 0 {
		ev.Events |= unix.EPOLLRDHUP
	}
	// EPOLLERR and EPOLLHUP are always reported
	if mask&EventET != 0 {
		ev.Events |= unix.EPOLLET
	}
	if mask&EventOneShot != 0 {
		ev.Events |= unix.EPOLLONESHOT
	}
	return &ev
}

func epollEventToEvent(events uint32) Event {
	var ev Event
	if events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ev |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		ev |= EventWrite
	}
	if events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= EventClose
	}
	if events&unix.EPOLLERR != 0 {
		ev |= EventError
	}
	return ev
}
