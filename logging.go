package reactor

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
)

type Logger = logiface.Logger[logiface.Event]

// reactorLogger returns a sub-logger tagging every event with the reactor ID.
// A nil base stays nil, and logiface treats a nil logger as disabled.
func reactorLogger(base *Logger, id uuid.UUID) *Logger {
	return base.Clone().
		Str("reactor", id.String()).
		Logger()
}

// handleString renders a handle for log fields; handles are arbitrary
// comparable values.
func handleString[H comparable](handle H) string {
	if s, ok := any(handle).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(handle)
}

// logStale records a notification that resolved to no registered handler.
// Warnings are rate limited per handle, the rest go to debug.
func (r *Reactor[H, E]) logStale(handle H, event E) {
	key := handleString(handle)
	if _, ok := r.staleLimiter.Allow(key); ok {
		r.logger.Warning().
			Str("handle", key).
			Str("event", fmt.Sprint(event)).
			Log("dropped notification for unregistered handle")
		return
	}
	r.logger.Debug().
		Str("handle", key).
		Str("event", fmt.Sprint(event)).
		Log("dropped notification for unregistered handle")
}

// logPanic records a Notify that panicked.
func (r *Reactor[H, E]) logPanic(handle H, event E, value any) {
	b := r.logger.Err().
		Str("handle", handleString(handle)).
		Str("event", fmt.Sprint(event))
	if err, ok := value.(error); ok {
		b = b.Err(err)
	} else {
		b = b.Str("panic", fmt.Sprint(value))
	}
	b.Log("recovered panic in handler")
}
