package reactor

import "strings"

// Event is a readiness bit mask. It is used both as the subscription mask
// passed to Register and as the set of bits reported to Notify.
type Event uint32

const (
	EventRead Event = 1 << iota
	EventWrite
	EventClose
	EventError
	// EventET and EventOneShot only affect arming, they are never reported.
	EventET
	EventOneShot
)

// readiness bits that a backend may report back
const reportable = EventRead | EventWrite | EventClose | EventError

func (e Event) IsRead() bool {
	return e&EventRead != 0
}

func (e Event) IsWrite() bool {
	return e&EventWrite != 0
}

// IsClose reports a peer hang-up.
func (e Event) IsClose() bool {
	return e&EventClose != 0
}

func (e Event) IsError() bool {
	return e&EventError != 0
}

func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, b := range [...]struct {
		bit  Event
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventClose, "close"},
		{EventError, "error"},
		{EventET, "et"},
		{EventOneShot, "oneshot"},
	} {
		if e&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}
