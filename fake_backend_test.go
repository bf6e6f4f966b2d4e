package reactor

import (
	"time"
)

// fakeBackend is a scripted Backend: Wait hands out queued batches in order,
// then reports nothing.
type fakeBackend struct {
	armed      map[int]Event
	batches    [][]Ready[int, Event]
	armErr     error
	modifyErr  error
	disarmErr  error
	waitErr    error
	waits      int
	closeCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{armed: make(map[int]Event)}
}

func (f *fakeBackend) queue(batch ...Ready[int, Event]) {
	f.batches = append(f.batches, batch)
}

func (f *fakeBackend) Arm(handle int, mask Event) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.armed[handle] = mask
	return nil
}

func (f *fakeBackend) Modify(handle int, mask Event) error {
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.armed[handle] = mask
	return nil
}

func (f *fakeBackend) Disarm(handle int) error {
	if f.disarmErr != nil {
		return f.disarmErr
	}
	delete(f.armed, handle)
	return nil
}

func (f *fakeBackend) Wait(events []Ready[int, Event], timeout time.Duration) (int, error) {
	f.waits++
	if f.waitErr != nil {
		return 0, f.waitErr
	}
	if len(f.batches) == 0 {
		if timeout > 0 {
			time.Sleep(min(timeout, time.Millisecond))
		}
		return 0, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return copy(events, batch), nil
}

func (f *fakeBackend) Null() int {
	return NullFD
}

func (f *fakeBackend) Close() error {
	f.closeCalls++
	return nil
}

func newFakeReactor(t interface{ Fatalf(string, ...any) }, b *fakeBackend, opts ...Option) *Reactor[int, Event] {
	r, err := New(func() (Backend[int, Event], error) { return b, nil }, opts...)
	if err != nil {
		t.Fatalf("new reactor: %v", err)
	}
	return r
}
