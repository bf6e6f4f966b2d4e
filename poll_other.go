//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package reactor

import "time"

// Poll is unavailable on this platform.
type Poll struct{}

func NewPoll() (*Poll, error) {
	return nil, ErrBackendUnsupported
}

func (*Poll) Arm(int, Event) error {
	return ErrBackendUnsupported
}

func (*Poll) Modify(int, Event) error {
	return ErrBackendUnsupported
}

func (*Poll) Disarm(int) error {
	return ErrBackendUnsupported
}

func (*Poll) Wait([]Ready[int, Event], time.Duration) (int, error) {
	return 0, ErrBackendUnsupported
}

func (*Poll) Null() int {
	return NullFD
}

func (*Poll) Close() error {
	return nil
}
