package relay

import (
	"log"
	"time"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/proto1"
)

// RunDownlink reads datagrams from the radio-facing socket and implements
// spec.md §4.2's contract: every datagram is forwarded to the client on
// the port matching the radio's source port, and, independently, every radio-origin I/Q
// frame also drives the egress pacer, which may emit zero or more
// buffered frames back to the radio, and feeds the MOX/fault observer of
// spec.md §4.3. The client-facing port is selected by the source port the
// radio sent from (addr.Port), matching the original's
// "ntohs(addr.sin_port) == 1025" dispatch - not by sniffing the payload,
// since a non-I/Q frame arriving on the 1024-side must still go to 1024.
func (r *Relay) RunDownlink() {
	buf := make([]byte, 2048)
	r.radioSock.SetReadDeadline(time.Now().Add(recvTimeout))

	for {
		if r.stopping() {
			return
		}

		n, addr, err := r.radioSock.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				r.radioSock.SetReadDeadline(time.Now().Add(recvTimeout))
				continue
			}
			log.Printf("relay: downlink read error: %v", err)
			continue
		}

		r.radioSock.SetReadDeadline(time.Now().Add(recvTimeout))
		r.rememberRadio(addr)
		frame := buf[:n]

		if addr.Port == 1025 {
			r.sendToClient(r.client1025, frame)
		} else {
			r.sendToClient(r.client1024, frame)
		}
		r.Rates.RecordDown(n, time.Now())

		if proto1.IsRadioIQ(frame) {
			r.Engine.ObserveFIFO(frame)
			for _, out := range r.Engine.OnRadioIQFrame(frame) {
				r.forwardToRadio(out)
			}
		}
	}
}
