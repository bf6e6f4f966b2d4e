//go:build linux || darwin || freebsd || netbsd || openbsd

package reactor

import (
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// SockaddrInet4 parses "host:port" into an IPv4 socket address. An empty
// host means all interfaces.
func SockaddrInet4(addr string) (*unix.SockaddrInet4, error) {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "0.0.0.0" + addr
	}
	addrPort, err := netip.ParseAddrPort(addr)
	if err != nil {
		return nil, err
	}
	ip := addrPort.Addr().Unmap()
	if !ip.Is4() {
		return nil, fmt.Errorf("reactor: %s is not an IPv4 address", addr)
	}
	return &unix.SockaddrInet4{Port: int(addrPort.Port()), Addr: ip.As4()}, nil
}

// SockaddrString formats a socket address as "host:port".
func SockaddrString(sa unix.Sockaddr) string {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)).String()
	case *unix.SockaddrUnix:
		return sa.Name
	default:
		return ""
	}
}
