// Package jitbuf implements the transmit-path jitter buffer and pacing
// engine described in spec.md §3-4: a ring buffer that reorders,
// deduplicates, gap-fills, and rate-matches client-to-radio I/Q datagrams
// against the radio's own return cadence, plus the control-word handling
// (sample rate, MOX, receiver count, RQST, start/stop) that must survive it.
//
// A single Engine instance is owned by the caller and shared between the
// uplink reader, downlink reader, and status reporter (spec.md §9
// "Global mutable state -> owned engine"). All mutation crosses one mutex;
// counters are plain or atomic fields so the status reporter can read them
// without locking, per spec.md §5.
package jitbuf

import (
	"sync"
	"sync/atomic"

	"github.com/jimahlstrom/HL2WifiBuffer/internal/proto1"
)

// State is the engine's coarse lifecycle state, per spec.md §3.
type State int

const (
	Startup State = iota
	Normal
	Restarting
)

func (s State) String() string {
	switch s {
	case Startup:
		return "STARTUP"
	case Normal:
		return "NORMAL"
	case Restarting:
		return "RESTARTING"
	default:
		return "?"
	}
}

// FIFOState is the Mealy machine tracking the radio's Tx FIFO, spec.md §4.3.
type FIFOState int

const (
	FIFOIdle FIFOState = iota
	FIFOArmed
	FIFOEngaged
	FIFOFaulted
)

// Engine holds the ring buffer, cursors, control registers, and counters.
// The zero value is not usable; construct with New.
type Engine struct {
	mu sync.Mutex

	ring [ringSize]slot
	read int // next slot to emit
	wr   int // one past the highest accepted sequence

	used int // target buffered fill, in frames; 0 = pass-through

	state    State
	fifo     FIFOState
	lastGood slot

	sampleRate   int
	numReceivers int
	mox          bool
	hl2Sequence  uint32
	rxSamples    int
	pendingRQST  int // ring index, or -1 for none

	// Counters, read without the lock by the status reporter (spec.md §5).
	seqOutOfOrder   atomic.Uint64
	seqDuplicate    atomic.Uint64
	seqMissing      atomic.Uint64
	seqTooLate      atomic.Uint64
	bufferOverflow  atomic.Uint64
	bufferUnderflow atomic.Uint64
	hl2BufferFaults atomic.Uint64
}

// New returns a freshly reset Engine with the given target buffered fill (in
// frames; 0 selects pass-through per spec.md §6).
func New(used int) *Engine {
	e := &Engine{}
	e.resetLocked()
	e.used = used
	return e
}

// SetUsed reconfigures the target buffered fill without touching the
// counters or cursors.
func (e *Engine) SetUsed(used int) {
	e.mu.Lock()
	e.used = used
	e.mu.Unlock()
}

// Used returns the current target buffered fill.
func (e *Engine) Used() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used
}

// Reset clears the ring and all control registers per spec.md §3
// "Lifecycle" and §4.1's start/stop handling (P4).
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
}

func (e *Engine) resetLocked() {
	for i := range e.ring {
		e.ring[i].tag = Empty
	}
	e.lastGood = slot{}
	e.read = 0
	e.wr = 0
	e.state = Startup
	e.fifo = FIFOIdle
	e.numReceivers = 1
	e.sampleRate = 48000
	e.mox = false
	e.hl2Sequence = 0
	e.rxSamples = 0
	e.pendingRQST = -1
	e.seqOutOfOrder.Store(0)
	e.seqDuplicate.Store(0)
	e.seqMissing.Store(0)
	e.seqTooLate.Store(0)
	e.bufferOverflow.Store(0)
	e.bufferUnderflow.Store(0)
	e.hl2BufferFaults.Store(0)
}

func (e *Engine) fillLocked() int {
	return (e.wr - e.read) & ringMask
}

// finalizeLocked stamps buf with the next hl2_sequence value, per spec.md
// §4.4. buf is returned for call-site chaining.
func (e *Engine) finalizeLocked(buf []byte) []byte {
	proto1.PutSequence(buf, e.hl2Sequence)
	e.hl2Sequence++
	return buf
}

// AcceptClientIQ processes one client-to-radio I/Q datagram per spec.md
// §4.1's "Buffered path". It updates the control registers for sample
// rate and receiver count whenever one of the frame's sub-frames addresses
// C0 register 0; other frames leave them unchanged. In
// pass-through mode (used == 0) every frame is accepted and forwarded
// immediately, so MOX is taken from it directly, matching the original's
// txbuf_used==0 branch. In buffered mode MOX is never set from here -
// per invariant 5 it must reflect an *accepted* datagram, and a frame can
// still be discarded as too-late below, so the original only updates mox
// from the tail of the pipeline (the frame actually being emitted; see
// tickNormalLocked/tickRestartingLocked). If the engine is configured for
// pass-through it rewrites the sequence in place and returns (buf, true)
// for the caller to forward immediately. Otherwise it inserts the frame
// into the ring and returns (nil, false); the frame will be emitted later
// by the downlink pacer.
func (e *Engine) AcceptClientIQ(buf []byte) (forward []byte, ok bool) {
	if len(buf) != proto1.DataSize {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if sr, nr, parsed := proto1.SpeedAndReceivers(buf); parsed {
		e.sampleRate = sr
		e.numReceivers = nr
	}

	if e.used == 0 {
		e.mox = proto1.MOX(buf)
		return e.finalizeLocked(buf), true
	}

	index := int(proto1.ClientSeqIndex(buf)) & ringMask

	switch {
	case e.read == e.wr: // ring empty
		e.read = index
		e.wr = (index + 1) & ringMask
	case index == e.wr: // in-order
		e.wr = (index + 1) & ringMask
	default:
		above := (index - e.wr) & ringMask
		below := (e.wr - index) & ringMask
		if above < below {
			// Sequence jumped forward; treat as in-order with a skip.
			e.wr = (index + 1) & ringMask
		} else {
			e.seqOutOfOrder.Add(1)
			aboveRead := (index - e.read) & ringMask
			belowRead := (e.read - index) & ringMask
			if belowRead < aboveRead {
				// Strictly behind read (not merely equal to it, which is
				// still the pending head slot): too late, discard.
				e.seqTooLate.Add(1)
				return nil, false
			}
		}
	}

	if e.ring[index].tag == Filled || e.ring[index].tag == FilledRQST {
		e.seqDuplicate.Add(1)
	}

	e.ring[index].payload = *(*[proto1.DataSize]byte)(buf)
	if proto1.RQST(buf) {
		e.ring[index].tag = FilledRQST
		e.pendingRQST = index
	} else {
		e.ring[index].tag = Filled
	}

	return nil, false
}

// ObserveFIFO feeds one radio-origin I/Q frame into the MOX/hardware-fault
// observer of spec.md §4.3. It is informational and never alters pacing.
func (e *Engine) ObserveFIFO(buf []byte) {
	level, errBit, ok := proto1.FIFOStatus(buf)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	mox := e.mox
	switch e.fifo {
	case FIFOIdle:
		if mox {
			e.fifo = FIFOArmed
		}
	case FIFOArmed:
		if !mox {
			e.fifo = FIFOIdle
		} else if level != 0 {
			e.fifo = FIFOEngaged
		}
	case FIFOEngaged:
		if !mox {
			e.fifo = FIFOIdle
		} else if errBit {
			e.hl2BufferFaults.Add(1)
			e.fifo = FIFOFaulted
		}
	case FIFOFaulted:
		if !mox {
			e.fifo = FIFOIdle
		} else if !errBit {
			e.fifo = FIFOEngaged
		}
	}
}

// OnRadioIQFrame drives the sample clock and, for each tick that fires,
// advances the pacer (spec.md §4.2). It returns zero or more fully-formed
// datagrams, already sequence-stamped, for the caller to send to the radio
// socket. In pass-through mode (used == 0) it does nothing and returns nil.
func (e *Engine) OnRadioIQFrame(buf []byte) [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.used == 0 {
		return nil
	}

	e.trimOverflowLocked()

	e.rxSamples += proto1.SamplesPerFrame(e.numReceivers)
	ratio := e.sampleRate / 48000
	if ratio < 1 {
		ratio = 1
	}
	threshold := 126 * ratio

	var out [][]byte
	for e.rxSamples >= threshold {
		e.rxSamples -= threshold
		out = append(out, e.tickLocked()...)
	}
	return out
}

// trimOverflowLocked enforces invariant P1/(2): fill must not exceed
// used*6/5. It is the sole enforcement point for that invariant, run ahead
// of the sample clock on every radio I/Q frame per spec.md §4.2.
func (e *Engine) trimOverflowLocked() {
	if e.used == 0 {
		return
	}
	limit := e.used * 6 / 5
	if e.fillLocked() <= limit {
		return
	}
	e.bufferOverflow.Add(1)
	newRead := (e.wr - e.used) & ringMask
	for i := e.read; i != newRead; i = (i + 1) & ringMask {
		e.ring[i].tag = Empty
	}
	e.read = newRead
}

// concealedLastGoodLocked ensures the last-good buffer's I/Q payload areas
// are zeroed (idempotent) and returns a fresh copy for emission, per
// spec.md §4.2's underrun-concealment step.
func (e *Engine) concealedLastGoodLocked() []byte {
	if e.lastGood.tag != Zeroed {
		proto1.ZeroIQPayload(e.lastGood.payload[:])
		e.lastGood.tag = Zeroed
	}
	out := make([]byte, proto1.DataSize)
	copy(out, e.lastGood.payload[:])
	return out
}

// tickLocked advances the engine state machine by one pacer tick and
// returns the zero, one, or two datagrams it produces.
func (e *Engine) tickLocked() [][]byte {
	switch e.state {
	case Startup:
		return e.tickStartupLocked()
	case Normal:
		return e.tickNormalLocked()
	case Restarting:
		return e.tickRestartingLocked()
	default:
		return nil
	}
}

func (e *Engine) tickStartupLocked() [][]byte {
	var out [][]byte
	if e.pendingRQST >= 0 {
		buf := make([]byte, proto1.DataSize)
		copy(buf, e.ring[e.pendingRQST].payload[:])
		e.mox = proto1.MOX(buf)
		e.pendingRQST = -1
		out = append(out, e.finalizeLocked(buf))
	}
	if e.fillLocked() >= e.used {
		e.state = Normal
	}
	return out
}

func (e *Engine) tickNormalLocked() [][]byte {
	if e.read == e.wr {
		e.bufferUnderflow.Add(1)
		e.state = Restarting
		return nil
	}

	s := &e.ring[e.read]
	if s.tag == FilledRQST {
		proto1.CopyC0Window(s.payload[:], e.lastGood.payload[:])
		s.tag = Filled
	}

	var emitted []byte
	if s.tag == Filled {
		emitted = make([]byte, proto1.DataSize)
		copy(emitted, s.payload[:])
		e.lastGood.payload = s.payload
		e.lastGood.tag = Filled
		s.tag = Empty
	} else {
		emitted = e.concealedLastGoodLocked()
		e.seqMissing.Add(1)
	}
	e.read = (e.read + 1) & ringMask

	// mox tracks the frame actually emitted, not whatever the client most
	// recently transmitted (spec.md invariant 5; see AcceptClientIQ).
	e.mox = proto1.MOX(emitted)

	out := [][]byte{e.finalizeLocked(emitted)}

	if e.pendingRQST >= 0 {
		extra := make([]byte, proto1.DataSize)
		copy(extra, emitted)
		proto1.CopyC0Window(extra, e.ring[e.pendingRQST].payload[:])
		proto1.SetMOX(extra, e.mox)
		e.pendingRQST = -1
		out = append(out, e.finalizeLocked(extra))
	}

	return out
}

func (e *Engine) tickRestartingLocked() [][]byte {
	emitted := e.concealedLastGoodLocked()
	e.mox = proto1.MOX(emitted)
	out := [][]byte{e.finalizeLocked(emitted)}
	if e.fillLocked() >= e.used {
		e.state = Normal
	}
	return out
}

// Snapshot is a read-only, lock-free view of the engine's counters and
// control registers for the status reporter (spec.md §5/§6).
type Snapshot struct {
	Used         int
	Fill         int
	State        string
	SampleRate   int
	NumReceivers int
	MOX          bool
	HL2Sequence  uint32

	SeqOutOfOrder   uint64
	SeqDuplicate    uint64
	SeqMissing      uint64
	SeqTooLate      uint64
	BufferOverflow  uint64
	BufferUnderflow uint64
	HL2BufferFaults uint64
}

// FillPercent returns the buffer level as a percentage of the target fill,
// or 0 if the engine is in pass-through mode.
func (s Snapshot) FillPercent() float64 {
	if s.Used == 0 {
		return 0
	}
	return float64(s.Fill) / float64(s.Used) * 100
}

// Snapshot reads the current counters and a handful of control registers
// without taking the mutex; torn reads are tolerated (spec.md §5). fill is
// computed with the same modular arithmetic as fillLocked but intentionally
// without the lock.
func (e *Engine) Snapshot() Snapshot {
	fill := (e.wr - e.read) & ringMask
	return Snapshot{
		Used:         e.used,
		Fill:         fill,
		State:        e.state.String(),
		SampleRate:   e.sampleRate,
		NumReceivers: e.numReceivers,
		MOX:          e.mox,
		HL2Sequence:  e.hl2Sequence,

		SeqOutOfOrder:   e.seqOutOfOrder.Load(),
		SeqDuplicate:    e.seqDuplicate.Load(),
		SeqMissing:      e.seqMissing.Load(),
		SeqTooLate:      e.seqTooLate.Load(),
		BufferOverflow:  e.bufferOverflow.Load(),
		BufferUnderflow: e.bufferUnderflow.Load(),
		HL2BufferFaults: e.hl2BufferFaults.Load(),
	}
}
