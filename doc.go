// Package reactor implements a single-threaded I/O readiness reactor.
//
// A Reactor owns a Backend (epoll, poll(2), or the in-process ChanBackend)
// and a HandlerMap keyed by handle identity. Run blocks on the backend and
// dispatches each ready event to the handler registered for its handle, on
// the calling goroutine. Handlers may register, modify and remove handlers,
// themselves included, from inside Notify, and Run returns once none are
// left.
//
//	r, err := reactor.NewEpollReactor(reactor.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//	if err := r.Register(h, reactor.EventRead); err != nil {
//		return err
//	}
//	return r.Run(ctx)
//
// The handle type is generic, so the same loop drives file descriptors and
// transport endpoints that have no descriptor. TCPServer and Conn are
// ready-made file descriptor handlers for framed TCP protocols.
package reactor
