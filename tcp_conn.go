//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

const (
	connReadMask  = EventRead | EventClose
	connWriteMask = connReadMask | EventWrite
	readChunk     = 4096
)

// Conn is an accepted connection, registered with the reactor as its own
// handler. Inbound bytes are decoded with the server's codec and passed to
// TCPHandler.OnData one frame at a time. Writes go straight to the socket,
// and whatever the kernel won't take is buffered until write readiness.
type Conn struct {
	fd      int
	addr    string
	server  *TCPServer
	in      *Buffer
	out     *Buffer
	writing bool
	closed  bool
}

func newConn(fd int, addr string, server *TCPServer) *Conn {
	return &Conn{
		fd:     fd,
		addr:   addr,
		server: server,
		in:     NewBuffer(readChunk),
		out:    NewBuffer(0),
	}
}

// Handle returns the socket fd.
func (c *Conn) Handle() int {
	return c.fd
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Buffered returns the number of bytes waiting to be written.
func (c *Conn) Buffered() int {
	return c.out.Len()
}

// Notify reads, flushes or closes depending on ev.
func (c *Conn) Notify(ev Event) {
	if ev.IsRead() {
		c.readFromFD()
	}
	if c.closed {
		return
	}
	if ev.IsWrite() {
		c.flush()
	}
	if c.closed {
		return
	}
	if ev.IsError() {
		var cause error = unix.ECONNRESET
		if errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && errno != 0 {
			cause = unix.Errno(errno)
		}
		c.closeWith(cause)
		return
	}
	if ev.IsClose() && !ev.IsRead() {
		c.closeWith(nil)
	}
}

// Write encodes data as one frame and sends it.
func (c *Conn) Write(data []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	frame, err := c.server.codec.Encode(data)
	if err != nil {
		return 0, err
	}
	if c.out.Len() > 0 {
		_, _ = c.out.Write(frame)
		return len(data), nil
	}
	n, err := writeFD(c.fd, frame)
	if err != nil {
		c.closeWith(err)
		return 0, err
	}
	if n < len(frame) {
		_, _ = c.out.Write(frame[n:])
		if err := c.setWriting(true); err != nil {
			c.closeWith(err)
			return 0, err
		}
	}
	return len(data), nil
}

// Close removes the connection from the reactor and closes the socket. If
// the reactor can't disarm it the error matches ErrBackendRemove, the socket
// stays open and registered, and Close may be retried.
func (c *Conn) Close() error {
	return c.closeWith(nil)
}

func (c *Conn) closeWith(cause error) error {
	if c.closed {
		return nil
	}
	if err := c.server.reactor.Remove(c); errors.Is(err, ErrBackendRemove) {
		c.server.reactor.logger.Warning().
			Int("fd", c.fd).
			Str("remote", c.addr).
			Err(err).
			Log("conn kept open, removal failed")
		return err
	}
	c.closed = true
	err := unix.Close(c.fd)
	c.server.conns.DelConn(c)
	c.in.Reset()
	c.out.Reset()
	c.server.handler.OnClose(c, cause)
	return err
}

// readFromFD drains the socket, then hands every complete frame to the
// handler. EOF closes the connection once the frames read before it are
// delivered.
func (c *Conn) readFromFD() {
	var cause error
	eof := false
	for {
		n, err := unix.Read(c.fd, c.in.Reserve(readChunk))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if !errors.Is(err, unix.EAGAIN) {
				cause = err
			}
			break
		}
		if n == 0 {
			eof = true
			break
		}
		c.in.Commit(n)
	}

	for !c.closed {
		frame, err := c.server.codec.Decode(c.in)
		if errors.Is(err, ErrIncompleteFrame) {
			break
		}
		if err != nil {
			c.closeWith(err)
			return
		}
		c.server.handler.OnData(c, frame)
	}

	switch {
	case c.closed:
	case cause != nil:
		c.closeWith(cause)
	case eof && c.in.Len() > 0:
		c.closeWith(io.ErrUnexpectedEOF)
	case eof:
		c.closeWith(nil)
	}
}

// flush writes buffered output until the socket is full.
func (c *Conn) flush() {
	for c.out.Len() > 0 {
		n, err := writeFD(c.fd, c.out.Bytes())
		if err != nil {
			c.closeWith(err)
			return
		}
		if n == 0 {
			return
		}
		c.out.Discard(n)
	}
	if err := c.setWriting(false); err != nil {
		c.closeWith(err)
	}
}

// setWriting toggles write readiness on the registration.
func (c *Conn) setWriting(on bool) error {
	if c.writing == on {
		return nil
	}
	mask := connReadMask
	if on {
		mask = connWriteMask
	}
	if err := c.server.reactor.Modify(c, mask); err != nil {
		return err
	}
	c.writing = on
	return nil
}

// writeFD writes as much of p as the socket accepts. A full socket buffer is
// not an error, it just returns a short count.
func writeFD(fd int, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(fd, p[total:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if errors.Is(err, unix.EAGAIN) {
				return total, nil
			}
			return total, err
		}
		total += n
	}
	return total, nil
}
