//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// Poll is a poll(2) backend. It works everywhere poll does, at the cost of
// passing the whole interest set to the kernel on every Wait. EventET is
// ignored (poll is level triggered) and EventOneShot is emulated by clearing
// the interest bits after the first report, until the next Modify.
type Poll struct {
	fds    []unix.PollFd
	masks  []Event
	index  map[int]int
	next   int
	closed bool
}

// NewPoll creates an empty poll set.
func NewPoll() (*Poll, error) {
	return &Poll{index: make(map[int]int)}, nil
}

func (p *Poll) Arm(fd int, mask Event) error {
	if p.closed {
		return unix.EBADF
	}
	if fd < 0 {
		return unix.EBADF
	}
	if _, ok := p.index[fd]; ok {
		return unix.EEXIST
	}
	p.index[fd] = len(p.fds)
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: eventToPollEvents(mask)})
	p.masks = append(p.masks, mask)
	return nil
}

func (p *Poll) Modify(fd int, mask Event) error {
	if p.closed {
		return unix.EBADF
	}
	i, ok := p.index[fd]
	if !ok {
		return unix.ENOENT
	}
	p.fds[i].Events = eventToPollEvents(mask)
	p.masks[i] = mask
	return nil
}

func (p *Poll) Disarm(fd int) error {
	if p.closed {
		return unix.EBADF
	}
	i, ok := p.index[fd]
	if !ok {
		return unix.ENOENT
	}
	last := len(p.fds) - 1
	if i != last {
		p.fds[i] = p.fds[last]
		p.masks[i] = p.masks[last]
		p.index[int(p.fds[i].Fd)] = i
	}
	p.fds = p.fds[:last]
	p.masks = p.masks[:last]
	delete(p.index, fd)
	return nil
}

func (p *Poll) Wait(events []Ready[int, Event], timeout time.Duration) (int, error) {
	if p.closed {
		return 0, unix.EBADF
	}
	if len(events) == 0 {
		return 0, nil
	}
	n, err := unix.Poll(p.fds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	// rotate the scan start so a short events slice can't starve the tail
	count := 0
	size := len(p.fds)
	start := p.next % size
	for j := 0; j < size && count < len(events); j++ {
		i := (start + j) % size
		fd := &p.fds[i]
		if fd.Revents == 0 {
			continue
		}
		events[count] = Ready[int, Event]{
			Handle: int(fd.Fd),
			Event:  pollEventsToEvent(fd.Revents),
		}
		count++
		fd.Revents = 0
		if p.masks[i]&EventOneShot != 0 {
			fd.Events = 0
		}
		p.next = i + 1
	}
	return count, nil
}

func (p *Poll) Null() int {
	return NullFD
}

func (p *Poll) Close() error {
	p.closed = true
	p.fds = nil
	p.masks = nil
	p.index = nil
	return nil
}

func eventToPollEvents(mask Event) int16 {
	var events int16
	if mask&EventRead != 0 {
		events |= unix.POLLIN | unix.POLLPRI
	}
	if mask&EventWrite != 0 {
		events |= unix.POLLOUT
	}
	// POLLERR, POLLHUP and POLLNVAL are always reported
	return events
}

func pollEventsToEvent(revents int16) Event {
	var ev Event
	if revents&(unix.POLLIN|unix.POLLPRI) != 0 {
		ev |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		ev |= EventWrite
	}
	if revents&unix.POLLHUP != 0 {
		ev |= EventClose
	}
	if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		ev |= EventError
	}
	return ev
}
