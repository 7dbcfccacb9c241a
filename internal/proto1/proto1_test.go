package proto1

import "testing"

func iqFrame(dir byte, seq uint32) []byte {
	buf := make([]byte, DataSize)
	buf[0] = Magic0
	buf[1] = Magic1
	buf[2] = 0x01
	buf[3] = dir
	PutSequence(buf, seq)
	return buf
}

func TestClassify(t *testing.T) {
	discovery := []byte{Magic0, Magic1, KindDiscovery, 0, 0}
	startStop := []byte{Magic0, Magic1, KindStartStop, 0, 0}
	iq := iqFrame(DirClientToRadio, 7)
	other := []byte{0x01, 0x02, 0x03}

	cases := []struct {
		name string
		buf  []byte
		want Kind
	}{
		{"discovery", discovery, KindDiscoveryFrame},
		{"startstop", startStop, KindStartStopFrame},
		{"iq", iq, KindIQFrame},
		{"other", other, KindOther},
	}
	for _, c := range cases {
		if got := Classify(c.buf); got != c.want {
			t.Errorf("%s: Classify() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsRadioIQ(t *testing.T) {
	radio := iqFrame(DirRadioToClient, 1)
	client := iqFrame(DirClientToRadio, 1)
	if !IsRadioIQ(radio) {
		t.Error("expected radio-origin I/Q frame to be recognized")
	}
	if IsRadioIQ(client) {
		t.Error("client-origin I/Q frame should not be recognized as radio-origin")
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	buf := iqFrame(DirClientToRadio, 0)
	PutSequence(buf, 0xdeadbeef)
	if got := Sequence(buf); got != 0xdeadbeef {
		t.Errorf("Sequence() = %#x, want %#x", got, 0xdeadbeef)
	}
}

func TestMOXAndRQST(t *testing.T) {
	buf := iqFrame(DirClientToRadio, 0)
	if MOX(buf) {
		t.Error("MOX should start clear")
	}
	SetMOX(buf, true)
	if !MOX(buf) {
		t.Error("SetMOX(true) did not set MOX")
	}

	buf[c0OffA] |= 0x80 // RQST bit
	if !RQST(buf) {
		t.Error("RQST bit not detected in sub-frame A")
	}
}

func TestSpeedAndReceivers(t *testing.T) {
	buf := iqFrame(DirClientToRadio, 0)
	// C0 address 0 selects the speed/receiver-count fields.
	buf[c0OffA] = 0x00
	buf[speedByteA] = 0x02 // 192000
	buf[rxCountByte] = (3 << 3) // 4 receivers

	rate, receivers, ok := SpeedAndReceivers(buf)
	if !ok {
		t.Fatal("expected SpeedAndReceivers to parse")
	}
	if rate != 192000 {
		t.Errorf("sample rate = %d, want 192000", rate)
	}
	if receivers != 4 {
		t.Errorf("receivers = %d, want 4", receivers)
	}
}

func TestCopyC0Window(t *testing.T) {
	a := iqFrame(DirClientToRadio, 0)
	b := iqFrame(DirClientToRadio, 0)
	for i := 0; i < 5; i++ {
		a[c0OffA+i] = byte(0x10 + i)
		b[c0OffA+i] = byte(0x20 + i)
	}

	CopyC0Window(b, a)
	for i := 0; i < 5; i++ {
		if b[c0OffA+i] != a[c0OffA+i] {
			t.Fatalf("CopyC0Window: byte %d = %#x, want %#x", i, b[c0OffA+i], a[c0OffA+i])
		}
	}
}

func TestZeroIQPayload(t *testing.T) {
	buf := iqFrame(DirRadioToClient, 0)
	for i := iqOffA; i < iqEndA; i++ {
		buf[i] = 0xff
	}
	for i := iqOffB; i < iqEndB; i++ {
		buf[i] = 0xff
	}
	ZeroIQPayload(buf)
	for i := iqOffA; i < iqEndA; i++ {
		if buf[i] != 0 {
			t.Fatalf("sub-frame A byte %d not zeroed", i)
		}
	}
	for i := iqOffB; i < iqEndB; i++ {
		if buf[i] != 0 {
			t.Fatalf("sub-frame B byte %d not zeroed", i)
		}
	}
}

func TestSamplesPerFrame(t *testing.T) {
	if got := SamplesPerFrame(1); got != 63*2 {
		t.Errorf("SamplesPerFrame(1) = %d, want %d", got, 63*2)
	}
}
