package reactor

// HandlerMap is the demultiplex table: handle identity -> (handler, mask).
// It has no side effects on any backend, arming is the Reactor's job.
// Not safe for concurrent use.
type HandlerMap[H comparable, E any] struct {
	null  H
	table map[H]handlerEntry[H, E]
}

type handlerEntry[H comparable, E any] struct {
	handler Handler[H, E]
	mask    E
}

// NewHandlerMap creates an empty table. Handles equal to null are rejected.
func NewHandlerMap[H comparable, E any](null H) *HandlerMap[H, E] {
	return &HandlerMap[H, E]{
		null:  null,
		table: make(map[H]handlerEntry[H, E]),
	}
}

// identity returns h's handle, or ErrInvalidHandler.
func (m *HandlerMap[H, E]) identity(h Handler[H, E]) (H, error) {
	if isNilHandler(h) {
		return m.null, ErrInvalidHandler
	}
	handle := h.Handle()
	if handle == m.null {
		return m.null, ErrInvalidHandler
	}
	return handle, nil
}

// Add inserts h. A handle that is already present is rejected, even when h is
// a different handler value.
func (m *HandlerMap[H, E]) Add(h Handler[H, E], mask E) error {
	handle, err := m.identity(h)
	if err != nil {
		return err
	}
	if _, ok := m.table[handle]; ok {
		return ErrAlreadyRegistered
	}
	m.put(handle, h, mask)
	return nil
}

// put inserts without validation, the caller has already checked handle.
func (m *HandlerMap[H, E]) put(handle H, h Handler[H, E], mask E) {
	m.table[handle] = handlerEntry[H, E]{handler: h, mask: mask}
}

// Remove erases the entry for h's handle.
func (m *HandlerMap[H, E]) Remove(h Handler[H, E]) error {
	handle, err := m.identity(h)
	if err != nil {
		return err
	}
	if _, ok := m.table[handle]; !ok {
		return ErrNotRegistered
	}
	delete(m.table, handle)
	return nil
}

// Dispatch calls Notify on the handler registered for handle. The event is
// delivered as is, filtering against the stored mask is up to the handler.
func (m *HandlerMap[H, E]) Dispatch(handle H, event E) error {
	if handle == m.null {
		return ErrInvalidHandler
	}
	entry, ok := m.table[handle]
	if !ok {
		return ErrNotRegistered
	}
	entry.handler.Notify(event)
	return nil
}

// Lookup returns the handler and mask stored for handle.
func (m *HandlerMap[H, E]) Lookup(handle H) (Handler[H, E], E, bool) {
	entry, ok := m.table[handle]
	return entry.handler, entry.mask, ok
}

// SetMask replaces the stored mask for handle.
func (m *HandlerMap[H, E]) SetMask(handle H, mask E) error {
	if handle == m.null {
		return ErrInvalidHandler
	}
	entry, ok := m.table[handle]
	if !ok {
		return ErrNotRegistered
	}
	entry.mask = mask
	m.table[handle] = entry
	return nil
}

func (m *HandlerMap[H, E]) Count() int {
	return len(m.table)
}

// Null returns the sentinel handle this table rejects.
func (m *HandlerMap[H, E]) Null() H {
	return m.null
}
