package reactor

import "reflect"

// Handler is anything that can be registered with a Reactor.
//
// Handle must return the same value for as long as the handler stays
// registered, it is the demultiplex table key. Notify receives the readiness
// bits reported by the backend. It runs on the goroutine driving Run, so it
// must not block, and it may call Register, Modify or Remove on the same
// reactor (removing itself is the usual way to finish a one-shot handler).
//
// The reactor never owns a handler. Remove it (or close its Registration)
// before releasing whatever Handle refers to.
type Handler[H comparable, E any] interface {
	Handle() H
	Notify(event E)
}

// FDHandler is a handler keyed by an OS file descriptor.
type FDHandler = Handler[int, Event]

type funcHandler[H comparable, E any] struct {
	handle H
	fn     func(E)
}

func (f *funcHandler[H, E]) Handle() H {
	return f.handle
}

func (f *funcHandler[H, E]) Notify(event E) {
	f.fn(event)
}

// HandlerFunc adapts fn into a Handler for handle. Each call returns a
// distinct handler value.
func HandlerFunc[H comparable, E any](handle H, fn func(event E)) Handler[H, E] {
	return &funcHandler[H, E]{handle: handle, fn: fn}
}

// isNilHandler catches both a nil interface and an interface wrapping a nil
// pointer (or other nil-able kind).
func isNilHandler(h any) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
