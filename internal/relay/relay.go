// Package relay wires the three UDP sockets of spec.md §6 to a
// jitbuf.Engine: an uplink reader (client -> ring), a downlink reader
// (radio -> client, plus the pacer tick), and a control relay for the
// UDP/1025 command/response channel. Each activity runs on its own
// goroutine, grounded on the teacher's per-protocol server goroutines
// (clients/hpsdr/protocol1.go's mainThread/senderThread pattern): a stop
// channel for shutdown, and a read-deadline loop rather than a raw
// blocking read, so the readers notice Stop promptly.
package relay

import (
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/jitbuf"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/proto1"
	"github.com/jimahlstrom/HL2WifiBuffer/internal/status"
)

// broadcastIP is the link-local broadcast address HL2 discovery replies
// and requests travel to, per spec.md §6.
const broadcastIP = "169.254.255.255"

// recvTimeout bounds each socket read so the reader goroutines notice
// Stop() without waiting forever on a packet that may never arrive. The
// uplink reader also treats this timeout as the stats-reset event of
// spec.md §5.
const recvTimeout = 1 * time.Second

// Relay owns the three sockets and the jitter buffer engine they share.
// It is the "owned engine, shared via reference" of spec.md §9, extended
// with the socket handles each activity needs.
type Relay struct {
	Engine *jitbuf.Engine
	Rates  *status.RateJitter

	radioSock *net.UDPConn // HL2-facing, ephemeral local port
	client1024 *net.UDPConn
	client1025 *net.UDPConn

	radioAddr  atomic.Pointer[net.UDPAddr]
	clientAddr atomic.Pointer[net.UDPAddr]

	stopCh chan struct{}
}

// New returns a Relay bound to the given sockets and engine. Sockets are
// owned by the caller (internal/sockio) and closed by the caller on
// shutdown; Relay only reads and writes them.
func New(engine *jitbuf.Engine, rates *status.RateJitter, radioSock, client1024, client1025 *net.UDPConn) *Relay {
	return &Relay{
		Engine:     engine,
		Rates:      rates,
		radioSock:  radioSock,
		client1024: client1024,
		client1025: client1025,
		stopCh:     make(chan struct{}),
	}
}

// Stop signals all reader goroutines to exit on their next recv timeout.
func (r *Relay) Stop() {
	close(r.stopCh)
}

func (r *Relay) stopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// knownRadioAddr returns the most recently observed radio source address,
// or nil before the radio has sent anything.
func (r *Relay) knownRadioAddr() *net.UDPAddr {
	return r.radioAddr.Load()
}

// knownClientAddr returns the most recently observed client source
// address. Per spec.md §9 Open Questions, only the latest client wins if
// more than one contends; this is intentional.
func (r *Relay) knownClientAddr() *net.UDPAddr {
	return r.clientAddr.Load()
}

func (r *Relay) rememberClient(addr *net.UDPAddr) {
	r.clientAddr.Store(addr)
}

func (r *Relay) rememberRadio(addr *net.UDPAddr) {
	r.radioAddr.Store(addr)
}

// forwardToRadio sends buf to the best-known radio address. It silently
// drops buf if the radio hasn't been heard from yet; discovery requests
// go through broadcastToRadio instead.
func (r *Relay) forwardToRadio(buf []byte) {
	addr := r.knownRadioAddr()
	if addr == nil {
		return
	}
	if _, err := r.radioSock.WriteToUDP(buf, addr); err != nil {
		log.Printf("relay: write to radio failed: %v", err)
	}
}

func (r *Relay) broadcastToRadio(buf []byte, port int) {
	addr := &net.UDPAddr{IP: net.ParseIP(broadcastIP), Port: port}
	if _, err := r.radioSock.WriteToUDP(buf, addr); err != nil {
		log.Printf("relay: broadcast to radio failed: %v", err)
	}
}

// sendToClient forwards buf to the last-known client address on the
// given socket. Silently drops if no client has been seen yet.
func (r *Relay) sendToClient(sock *net.UDPConn, buf []byte) {
	addr := r.knownClientAddr()
	if addr == nil {
		return
	}
	if _, err := sock.WriteToUDP(buf, addr); err != nil {
		log.Printf("relay: write to client failed: %v", err)
	}
}

// classifyAndRelay implements the shared classification of spec.md §4.1,
// used by both the uplink reader (port 1024) and the control relay (port
// 1025): discovery and start/stop are handled identically regardless of
// which client-facing port they arrived on. discoveryPort selects which
// port number the broadcast discovery forward uses (1024 or 1025).
func (r *Relay) classifyAndRelay(buf []byte, discoveryPort int) {
	switch proto1.Classify(buf) {
	case proto1.KindDiscoveryFrame:
		r.broadcastToRadio(buf, discoveryPort)

	case proto1.KindStartStopFrame:
		r.Engine.Reset()
		if r.knownRadioAddr() != nil {
			r.forwardToRadio(buf)
		}

	case proto1.KindIQFrame:
		if fwd, ok := r.Engine.AcceptClientIQ(buf); ok {
			r.forwardToRadio(fwd)
		}

	default:
		r.forwardToRadio(buf)
	}
}
