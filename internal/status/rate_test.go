package status

import (
	"testing"
	"time"
)

func TestRateJitterRollsAfterInterval(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewRateJitter(start)

	m.RecordUp(1000, start)
	m.RecordUp(1000, start.Add(1*time.Second))

	snap := m.Snapshot()
	if snap.UpMbit != 0 {
		t.Errorf("rate should not roll before the interval elapses, got %v", snap.UpMbit)
	}

	m.RecordUp(1000, start.Add(5*time.Second))
	snap = m.Snapshot()
	if snap.UpMbit == 0 {
		t.Error("expected a non-zero up rate after the roll interval elapsed")
	}
}

func TestRateJitterTracksMaxInterArrival(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewRateJitter(start)

	m.RecordUp(100, start)
	m.RecordUp(100, start.Add(50*time.Millisecond))
	m.RecordUp(100, start.Add(250*time.Millisecond)) // 200ms gap, the new max

	snap := m.Snapshot()
	if snap.JitterSeconds < 0.199 || snap.JitterSeconds > 0.201 {
		t.Errorf("jitter = %v, want ~0.2s", snap.JitterSeconds)
	}
}

func TestResetOnTimeoutClearsEverything(t *testing.T) {
	start := time.Unix(0, 0)
	m := NewRateJitter(start)
	m.RecordUp(1000, start)
	m.RecordUp(1000, start.Add(200*time.Millisecond))

	m.ResetOnTimeout(start.Add(1 * time.Second))

	snap := m.Snapshot()
	if snap.JitterSeconds != 0 || snap.UpMbit != 0 || snap.DownMbit != 0 {
		t.Errorf("expected all zero after timeout reset, got %+v", snap)
	}
}
