package reactor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_String(t *testing.T) {
	for _, tc := range []struct {
		ev   Event
		want string
	}{
		{0, "none"},
		{EventRead, "read"},
		{EventRead | EventWrite, "read|write"},
		{EventClose | EventError, "close|error"},
		{EventRead | EventET | EventOneShot, "read|et|oneshot"},
	} {
		assert.Equal(t, tc.want, tc.ev.String())
	}
}

func TestEvent_Predicates(t *testing.T) {
	ev := EventRead | EventError
	assert.True(t, ev.IsRead())
	assert.False(t, ev.IsWrite())
	assert.False(t, ev.IsClose())
	assert.True(t, ev.IsError())
}

func TestBackendError(t *testing.T) {
	cause := errors.New("boom")
	err := backendError(ErrBackendAdd, "arm", cause)

	assert.ErrorIs(t, err, ErrBackendAdd)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBackendRemove)
	assert.EqualError(t, err, "reactor: backend add failed: arm: boom")

	var be *BackendError
	assert.ErrorAs(t, err, &be)
	assert.Equal(t, "arm", be.Op)

	assert.EqualError(t, backendError(ErrBackendWait, "wait", nil), "reactor: backend wait failed: wait")
}

func TestBackendType_String(t *testing.T) {
	assert.Equal(t, "epoll", EpollType.String())
	assert.Equal(t, "poll", PollType.String())
	assert.Equal(t, "unknown", BackendType(0).String())
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, -1, timeoutMillis(-1))
	assert.Equal(t, 0, timeoutMillis(0))
	assert.Equal(t, 1, timeoutMillis(1))
	assert.Equal(t, 2, timeoutMillis(1500*1000))
	assert.Equal(t, 1<<31-1, timeoutMillis(1<<62))
}

func TestNewFDBackend_Unsupported(t *testing.T) {
	b, err := NewFDBackend(BackendType(99))
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrBackendUnsupported)
}
