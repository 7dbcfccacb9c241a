package relay

import (
	"log"
	"net"
	"time"
)

// RunUplink reads client datagrams from the I/Q port (UDP/1024) and
// drives the classification of spec.md §4.1: discovery and start/stop are
// forwarded/reset, I/Q frames go to the ring (or straight through in
// pass-through mode), and anything else is forwarded verbatim. It returns
// when Stop has been called and the in-flight read unblocks.
//
// Grounded on the teacher's mainThread loop (clients/hpsdr/protocol1.go):
// a short read deadline so the stop signal is noticed promptly. The same
// recvTimeout deadline is used whether or not a client has been seen.
func (r *Relay) RunUplink() {
	buf := make([]byte, 2048)
	r.client1024.SetReadDeadline(time.Now().Add(recvTimeout))

	for {
		if r.stopping() {
			return
		}

		n, addr, err := r.client1024.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				// spec.md §5: the uplink recv timeout is treated as a
				// stats-reset event.
				r.Rates.ResetOnTimeout(time.Now())
				r.client1024.SetReadDeadline(time.Now().Add(recvTimeout))
				continue
			}
			log.Printf("relay: uplink read error: %v", err)
			continue
		}

		now := time.Now()
		r.client1024.SetReadDeadline(now.Add(recvTimeout))
		r.rememberClient(addr)
		r.Rates.RecordUp(n, now)

		frame := append([]byte(nil), buf[:n]...)
		r.classifyAndRelay(frame, 1024)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
