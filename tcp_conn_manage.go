//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

// ConnManage tracks the live connections of a TCPServer by file descriptor.
// It belongs to the reactor goroutine, so there is no locking.
type ConnManage struct {
	conns map[int]*Conn // all live connections
}

func NewConnManage() *ConnManage {
	return &ConnManage{conns: make(map[int]*Conn)}
}

// add a connection
func (cm *ConnManage) AddConn(conn *Conn) {
	cm.conns[conn.fd] = conn
}

// delete a connection, unless its fd already belongs to a newer one
func (cm *ConnManage) DelConn(conn *Conn) {
	if cm.conns[conn.fd] == conn {
		delete(cm.conns, conn.fd)
	}
}

// get a connection by fd
func (cm *ConnManage) GetConn(fd int) (*Conn, bool) {
	conn, ok := cm.conns[fd]
	return conn, ok
}

// number of live connections
func (cm *ConnManage) Len() int {
	return len(cm.conns)
}

// Close closes every connection. Connections whose removal from the reactor
// fails stay tracked so that Close can be retried.
func (cm *ConnManage) Close() error {
	conns := make([]*Conn, 0, len(cm.conns))
	for _, c := range cm.conns {
		conns = append(conns, c)
	}
	var first error
	for _, c := range conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
