package jitbuf

import (
	"testing"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/proto1"
)

// clientIQ builds a client-origin I/Q frame. The low 16 bits of the
// 32-bit sequence field (offsets 4..8, shared with the ring-index bytes
// 6..8) carry the client sequence; emission rewrites that same field with
// hl2_sequence, so a marker byte at offset 20 (inside the I/Q payload
// area, untouched by normal emission) records the original client
// sequence for tests to check ordering against.
func clientIQ(seq uint32) []byte {
	buf := make([]byte, proto1.DataSize)
	buf[0] = proto1.Magic0
	buf[1] = proto1.Magic1
	buf[2] = 0x01
	buf[3] = proto1.DirClientToRadio
	proto1.PutSequence(buf, seq)
	buf[20] = byte(seq)
	return buf
}

func radioIQ() []byte {
	buf := make([]byte, proto1.DataSize)
	buf[0] = proto1.Magic0
	buf[1] = proto1.Magic1
	buf[2] = 0x01
	buf[3] = proto1.DirRadioToClient
	return buf
}

// S1: pass-through mode forwards every I/Q frame immediately with a
// rewritten, monotonically increasing sequence.
func TestPassThrough(t *testing.T) {
	e := New(0)

	out1, ok := e.AcceptClientIQ(clientIQ(5))
	if !ok {
		t.Fatal("expected immediate forward in pass-through mode")
	}
	out2, ok := e.AcceptClientIQ(clientIQ(6))
	if !ok {
		t.Fatal("expected immediate forward in pass-through mode")
	}

	if got := proto1.Sequence(out1); got != 0 {
		t.Errorf("first emission sequence = %d, want 0", got)
	}
	if got := proto1.Sequence(out2); got != 1 {
		t.Errorf("second emission sequence = %d, want 1", got)
	}
}

// S2/round-trip law: out-of-order acceptance within the buffer window
// emits in ascending sequence order once the pacer runs.
func TestReorderEmitsInSequenceOrder(t *testing.T) {
	e := New(4)

	for _, seq := range []uint32{10, 12, 11, 13} {
		if _, ok := e.AcceptClientIQ(clientIQ(seq)); ok {
			t.Fatalf("seq %d: expected buffered, not forwarded", seq)
		}
	}

	var emitted []byte
	for i := 0; i < 4*126+10; i++ {
		for _, out := range e.OnRadioIQFrame(radioIQ()) {
			emitted = append(emitted, out[20])
		}
	}

	if len(emitted) < 4 {
		t.Fatalf("expected at least 4 emissions, got %d", len(emitted))
	}
	want := []byte{10, 11, 12, 13}
	for i, w := range want {
		if emitted[i] != w {
			t.Errorf("emission %d client seq = %d, want %d", i, emitted[i], w)
		}
	}
}

// S3: duplicates are counted but do not suppress emission.
func TestDuplicateCounted(t *testing.T) {
	e := New(4)
	e.AcceptClientIQ(clientIQ(10))
	e.AcceptClientIQ(clientIQ(10))
	e.AcceptClientIQ(clientIQ(11))

	if got := e.Snapshot().SeqDuplicate; got != 1 {
		t.Errorf("seq_duplicate = %d, want 1", got)
	}
}

// S4: a hole in the sequence is concealed with a zeroed payload and
// counted as missing.
func TestHoleConcealment(t *testing.T) {
	// used=3 matches the fill reached by accepting 10 and 12 (an
	// out-of-order jump leaves write at 13, read at 10): the engine
	// reaches NORMAL as soon as it has buffered this many frames.
	e := New(3)
	e.AcceptClientIQ(clientIQ(10))
	e.AcceptClientIQ(clientIQ(12))

	for i := 0; i < 4*126+10; i++ {
		e.OnRadioIQFrame(radioIQ())
	}

	if e.Snapshot().SeqMissing == 0 {
		t.Error("expected seq_missing to be incremented for the hole at 11")
	}
}

// S5: overflow trims the ring back to exactly `used`.
func TestOverflowTrim(t *testing.T) {
	e := New(4)
	for seq := uint32(0); seq < 8; seq++ {
		e.AcceptClientIQ(clientIQ(seq))
	}

	e.trimOverflowLocked()

	snap := e.Snapshot()
	if snap.BufferOverflow != 1 {
		t.Errorf("buffer_overflow = %d, want 1", snap.BufferOverflow)
	}
	if snap.Fill != snap.Used {
		t.Errorf("fill = %d, want %d", snap.Fill, snap.Used)
	}
}

// P4: a start/stop reset clears the ring and control registers.
func TestResetClearsState(t *testing.T) {
	e := New(4)
	e.AcceptClientIQ(clientIQ(10))
	e.mox = true
	e.hl2Sequence = 99

	e.Reset()

	snap := e.Snapshot()
	if snap.Fill != 0 {
		t.Errorf("fill = %d, want 0 after reset", snap.Fill)
	}
	if snap.HL2Sequence != 0 {
		t.Errorf("hl2_sequence = %d, want 0 after reset", snap.HL2Sequence)
	}
	if snap.NumReceivers != 1 || snap.SampleRate != 48000 || snap.MOX {
		t.Errorf("control registers not reset: %+v", snap)
	}
}

// P2: emitted sequence numbers strictly increase across ticks.
func TestSequenceStrictlyIncreasing(t *testing.T) {
	e := New(4)
	for seq := uint32(0); seq < 4; seq++ {
		e.AcceptClientIQ(clientIQ(seq))
	}

	var last uint32
	first := true
	for i := 0; i < 4*126+10; i++ {
		for _, out := range e.OnRadioIQFrame(radioIQ()) {
			got := proto1.Sequence(out)
			if !first && got <= last {
				t.Fatalf("sequence did not strictly increase: %d after %d", got, last)
			}
			last = got
			first = false
		}
	}
}
