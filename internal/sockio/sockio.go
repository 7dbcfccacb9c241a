// Package sockio sets up the three UDP sockets spec.md §6 describes: a
// radio-facing socket bound to an ephemeral port on the HL2 interface, and
// two client-facing sockets bound INADDR_ANY on 1024 (I/Q) and 1025
// (command/response) with SO_BROADCAST set so discovery replies can reach
// 169.254.255.255.
//
// net.ListenUDP has no portable way to set SO_BROADCAST, so this package
// pulls the raw file descriptor with github.com/higebu/netfd (the same
// technique runZeroInc-sockstats/pkg/exporter uses to reach a net.Conn's
// fd) and calls golang.org/x/sys/unix directly.
package sockio

import (
	"fmt"
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// Sockets holds the three bound UDP connections a Relay needs.
type Sockets struct {
	Radio      *net.UDPConn
	Client1024 *net.UDPConn
	Client1025 *net.UDPConn
}

// Open binds the radio-facing socket to hl2Addr (an ephemeral port on the
// HL2 interface's address) and the two client-facing sockets to
// INADDR_ANY:1024/1025 with SO_BROADCAST enabled.
func Open(hl2Addr net.IP) (*Sockets, error) {
	radio, err := net.ListenUDP("udp4", &net.UDPAddr{IP: hl2Addr, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("sockio: radio socket: %w", err)
	}

	client1024, err := listenBroadcast(1024)
	if err != nil {
		radio.Close()
		return nil, fmt.Errorf("sockio: client 1024 socket: %w", err)
	}

	client1025, err := listenBroadcast(1025)
	if err != nil {
		radio.Close()
		client1024.Close()
		return nil, fmt.Errorf("sockio: client 1025 socket: %w", err)
	}

	return &Sockets{Radio: radio, Client1024: client1024, Client1025: client1025}, nil
}

// Close closes all three sockets, logging nothing; callers that care
// about close errors should inline net.UDPConn.Close themselves.
func (s *Sockets) Close() {
	s.Radio.Close()
	s.Client1024.Close()
	s.Client1025.Close()
}

func listenBroadcast(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, err
	}
	fd := netfd.GetFdFromConn(conn)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("SO_BROADCAST: %w", err)
	}
	return conn, nil
}
