package status

import (
	"sync"
	"time"
)

// ethernetOverhead accounts for the Ethernet/IP/UDP framing the original
// C implementation added before computing Mbit/s (14 + 20 + 8 bytes), so the
// displayed rate matches what an operator watching the wire would see rather
// than under-reporting by header overhead (see SPEC_FULL.md "Supplemented
// from original_source").
const ethernetOverhead = 14 + 20 + 8

// rateRollInterval is how often accumulated byte counts are folded into a
// Mbit/s estimate, matching the original's 4-second window.
const rateRollInterval = 4 * time.Second

// RateJitter tracks upstream/downstream byte rates and inter-arrival jitter
// for the Wi-Fi-facing link, per spec.md §4.1 "Jitter metric" and §6's
// byte-rate fields. It is independent of the jitbuf.Engine mutex.
type RateJitter struct {
	mu sync.Mutex

	upBytes, downBytes uint64
	upRate, downRate   float64 // Mbit/s, last rolled window

	lastArrival time.Time
	jitter      time.Duration // rolling max inter-arrival delta
	lastRoll    time.Time
}

// NewRateJitter returns a tracker with its windows anchored at now.
func NewRateJitter(now time.Time) *RateJitter {
	return &RateJitter{lastRoll: now}
}

// RecordUp registers n bytes received from the client and updates the
// inter-arrival jitter estimate.
func (m *RateJitter) RecordUp(n int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upBytes += uint64(n) + ethernetOverhead
	if !m.lastArrival.IsZero() {
		if d := now.Sub(m.lastArrival); d > m.jitter {
			m.jitter = d
		}
	}
	m.lastArrival = now
	m.rollLocked(now)
}

// RecordDown registers n bytes forwarded to the client.
func (m *RateJitter) RecordDown(n int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downBytes += uint64(n) + ethernetOverhead
	m.rollLocked(now)
}

func (m *RateJitter) rollLocked(now time.Time) {
	if m.lastRoll.IsZero() {
		m.lastRoll = now
		return
	}
	elapsed := now.Sub(m.lastRoll)
	if elapsed < rateRollInterval {
		return
	}
	secs := elapsed.Seconds()
	m.upRate = float64(m.upBytes) * 8.0 / secs / 1e6
	m.downRate = float64(m.downBytes) * 8.0 / secs / 1e6
	m.upBytes, m.downBytes = 0, 0
	m.lastRoll = now
}

// ResetOnTimeout clears rates and jitter, per spec.md §5: the uplink
// reader's 1-second recv timeout is treated as a stats-reset event.
func (m *RateJitter) ResetOnTimeout(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upBytes, m.downBytes = 0, 0
	m.upRate, m.downRate = 0, 0
	m.jitter = 0
	m.lastArrival = time.Time{}
	m.lastRoll = now
}

// RateSnapshot is a point-in-time read of the rate/jitter tracker.
type RateSnapshot struct {
	UpMbit, DownMbit float64
	JitterSeconds    float64
}

// Snapshot returns the current estimates.
func (m *RateJitter) Snapshot() RateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return RateSnapshot{
		UpMbit:        m.upRate,
		DownMbit:      m.downRate,
		JitterSeconds: m.jitter.Seconds(),
	}
}
