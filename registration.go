package reactor

import "reflect"

// Registration removes its handler from the reactor when closed, so that a
// handler's lifetime can be tied to its registration with defer:
//
//	reg, err := r.Guard(h, EventRead)
//	if err != nil {
//		return err
//	}
//	defer reg.Close()
type Registration[H comparable, E any] struct {
	reactor *Reactor[H, E]
	handler Handler[H, E]
	done    bool
}

// Guard registers h for mask and returns its Registration.
func (r *Reactor[H, E]) Guard(h Handler[H, E], mask E) (*Registration[H, E], error) {
	if err := r.Register(h, mask); err != nil {
		return nil, err
	}
	return &Registration[H, E]{reactor: r, handler: h}, nil
}

func (g *Registration[H, E]) Handler() Handler[H, E] {
	return g.handler
}

// Modify changes the registered mask.
func (g *Registration[H, E]) Modify(mask E) error {
	if g.done {
		return ErrNotRegistered
	}
	return g.reactor.Modify(g.handler, mask)
}

// Close removes the handler. It is safe to call more than once, and treats a
// handler that was already removed by other means, or a closed reactor, as
// success. It never removes a different handler that has since been
// registered under the same handle. A failed disarm is returned and Close may
// be retried.
func (g *Registration[H, E]) Close() error {
	if g == nil || g.done {
		return nil
	}
	if g.reactor.usable() == nil {
		if current, _, ok := g.reactor.table.Lookup(g.handler.Handle()); ok && !sameHandler(current, g.handler) {
			g.done = true
			return nil
		}
	}
	switch err := g.reactor.Remove(g.handler); err {
	case nil, ErrNotRegistered, ErrClosed:
		g.done = true
		return nil
	default:
		return err
	}
}

func sameHandler[H comparable, E any](a, b Handler[H, E]) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.TypeOf(a).Comparable() {
		return true
	}
	return a == b
}
