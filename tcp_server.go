//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// TCPHandler receives connection callbacks, on the reactor goroutine.
type TCPHandler interface {
	OnConnect(conn *Conn)
	// OnData is called once per decoded frame.
	OnData(conn *Conn, frame []byte)
	// OnClose is called once; err is nil for an orderly close.
	OnClose(conn *Conn, err error)
}

// TCPServer is a listening socket driven by a file descriptor reactor. It is
// itself an FDHandler: read readiness on the listener accepts connections,
// each of which is registered as its own handler.
type TCPServer struct {
	addr    string
	fd      int
	reactor *Reactor[int, Event]
	handler TCPHandler
	codec   EnDecoder
	conns   *ConnManage
}

// NewTCPServer creates a server for addr ("host:port", IPv4). A nil codec
// means RawCodec.
func NewTCPServer(r *Reactor[int, Event], addr string, handler TCPHandler, codec EnDecoder) *TCPServer {
	if codec == nil {
		codec = RawCodec{}
	}
	return &TCPServer{
		addr:    addr,
		fd:      NullFD,
		reactor: r,
		handler: handler,
		codec:   codec,
		conns:   NewConnManage(),
	}
}

// Listen opens the listening socket and registers it with the reactor.
func (s *TCPServer) Listen() error {
	sa, err := SockaddrInet4(s.addr)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return err
	}
	unix.CloseOnExec(fd)
	if err := s.setup(fd, sa); err != nil {
		_ = unix.Close(fd)
		return err
	}
	s.fd = fd
	if err := s.reactor.Register(s, EventRead); err != nil {
		s.fd = NullFD
		_ = unix.Close(fd)
		return err
	}
	s.reactor.logger.Info().
		Str("addr", s.Addr()).
		Log("tcp server listening")
	return nil
}

// setup makes fd a non-blocking listener bound to sa.
func (s *TCPServer) setup(fd int, sa unix.Sockaddr) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		return err
	}
	return unix.Listen(fd, unix.SOMAXCONN)
}

// Addr returns the bound address, which resolves a zero port.
func (s *TCPServer) Addr() string {
	if s.fd == NullFD {
		return s.addr
	}
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return s.addr
	}
	return SockaddrString(sa)
}

// Handle returns the listener fd.
func (s *TCPServer) Handle() int {
	return s.fd
}

// Notify accepts every pending connection. An error or hang-up on the
// listener stops accepting, existing connections are left alone.
func (s *TCPServer) Notify(ev Event) {
	if ev.IsError() || ev.IsClose() {
		var cause error = unix.EINVAL
		if errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && errno != 0 {
			cause = unix.Errno(errno)
		}
		s.reactor.logger.Err().
			Str("addr", s.Addr()).
			Str("event", ev.String()).
			Err(cause).
			Log("listener failed, no longer accepting")
		_ = s.closeListener()
		return
	}
	if !ev.IsRead() {
		return
	}
	for {
		if err := s.accept(); err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return
			}
			if errors.Is(err, unix.ECONNABORTED) {
				continue
			}
			s.reactor.logger.Warning().
				Err(err).
				Log("accept failed")
			return
		}
	}
}

// accept takes one connection off the backlog and registers it.
func (s *TCPServer) accept() error {
	nfd, sa, err := unix.Accept(s.fd)
	if err != nil {
		return err
	}
	unix.CloseOnExec(nfd)
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return err
	}
	conn := newConn(nfd, SockaddrString(sa), s)
	if err := s.reactor.Register(conn, connReadMask); err != nil {
		_ = unix.Close(nfd)
		return err
	}
	s.conns.AddConn(conn)
	s.handler.OnConnect(conn)
	return nil
}

// Conns returns the live connection count.
func (s *TCPServer) Conns() int {
	return s.conns.Len()
}

// Close closes every connection and the listener. If the reactor fails to
// disarm any of them the error matches ErrBackendRemove, whatever failed is
// left open and registered, and Close may be retried.
func (s *TCPServer) Close() error {
	err := s.conns.Close()
	if lerr := s.closeListener(); err == nil {
		err = lerr
	}
	return err
}

// closeListener removes the listener from the reactor, then closes it.
func (s *TCPServer) closeListener() error {
	if s.fd == NullFD {
		return nil
	}
	if err := s.reactor.Remove(s); errors.Is(err, ErrBackendRemove) {
		s.reactor.logger.Warning().
			Int("fd", s.fd).
			Err(err).
			Log("listener kept open, removal failed")
		return err
	}
	err := unix.Close(s.fd)
	s.fd = NullFD
	return err
}
