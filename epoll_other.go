//go:build !linux

package reactor

import "time"

// Epoll is only available on linux, see NewPoll for other unix systems.
type Epoll struct{}

func NewEpoll() (*Epoll, error) {
	return nil, ErrBackendUnsupported
}

func (*Epoll) Arm(int, Event) error {
	return ErrBackendUnsupported
}

func (*Epoll) Modify(int, Event) error {
	return ErrBackendUnsupported
}

func (*Epoll) Disarm(int) error {
	return ErrBackendUnsupported
}

func (*Epoll) Wait([]Ready[int, Event], time.Duration) (int, error) {
	return 0, ErrBackendUnsupported
}

func (*Epoll) Null() int {
	return NullFD
}

func (*Epoll) Close() error {
	return nil
}
