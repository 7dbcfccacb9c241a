package relay

import (
	"log"
	"time"
)

// RunControl reads client datagrams from the command/response port
// (UDP/1025) and relays them using the same classification rules as the
// uplink reader (spec.md §2: "Handles the UDP/1025 command/response
// channel (discovery + bidirectional forwarding)"). Discovery requests on
// this port broadcast to 169.254.255.255:1025; everything else that isn't
// discovery or start/stop is forwarded to the radio verbatim, since 1025
// never carries I/Q frames in practice but the classifier handles it
// uniformly regardless.
func (r *Relay) RunControl() {
	buf := make([]byte, 2048)
	r.client1025.SetReadDeadline(time.Now().Add(recvTimeout))

	for {
		if r.stopping() {
			return
		}

		n, addr, err := r.client1025.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				r.client1025.SetReadDeadline(time.Now().Add(recvTimeout))
				continue
			}
			log.Printf("relay: control read error: %v", err)
			continue
		}

		r.client1025.SetReadDeadline(time.Now().Add(recvTimeout))
		r.rememberClient(addr)
		frame := append([]byte(nil), buf[:n]...)
		r.classifyAndRelay(frame, 1025)
	}
}
