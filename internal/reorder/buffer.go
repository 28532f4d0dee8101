// Package reorder implements a bounded, wrap-aware, dynamically growing ring
// buffer of RTP packets keyed by 16-bit sequence number. It detects frame
// boundaries in an MPEG Program Stream multiplex carried over RTP, serializes
// out complete frames in order, and signals catastrophic loss so a caller can
// request a fresh keyframe.
//
// Modeled on the teacher's internal/rtp packet-index bookkeeping
// (internal/rtp/rtp.go), generalized into a standalone packet buffer per
// the design of webrtc.org's video_coding/packet_buffer (as referenced by
// the upstream mediasoup PsRtpPacketBuffer extension this package is
// grounded on).
package reorder

import (
	"github.com/lanikai/psrtp/internal/logging"
	"github.com/lanikai/psrtp/internal/seqnum"
)

var log = logging.NewLogger("reorder")

const maxMissingAge = 1000

// Packet is a single RTP packet's worth of bookkeeping tracked by the
// Buffer. RTPPacket is a borrowed handle to the caller's packet descriptor;
// the Buffer never dereferences its contents beyond what is passed to
// Insert.
type Packet struct {
	SeqNum    uint16
	Timestamp uint32

	// IsFirstInFrame is true iff the payload begins with the PS pack
	// start code 00 00 01 BA.
	IsFirstInFrame bool

	// IsLastInFrame mirrors the RTP marker bit on arrival.
	IsLastInFrame bool

	// Continuous is set once every earlier packet of this packet's frame
	// has been inserted. Monotone: never reverts to false.
	Continuous bool

	// RTPPacket is the caller-owned packet this entry describes.
	RTPPacket interface{}
}

// InsertResult is returned by Insert and InsertPadding.
type InsertResult struct {
	// Packets is the ordered list of packets belonging to one or more
	// newly-completed frames, oldest first.
	Packets []*Packet

	// BufferCleared is true when the buffer could not accept a packet even
	// after maxing out its capacity, and was cleared as a result. The
	// caller should request a new keyframe from the upstream source.
	BufferCleared bool
}

// Buffer is a sequence-number indexed packet store with frame detection.
// Not safe for concurrent use; see the module's concurrency model (one
// Buffer per SSRC, driven synchronously by its owning Processor).
type Buffer struct {
	maxSize int

	slots []*Packet

	firstSeqNum         uint16
	firstPacketReceived bool
	clearedToFirst      bool

	lastReceivedPacketMs          int64
	lastReceivedKeyframePacketMs  int64
	lastReceivedKeyframeTimestamp uint32

	newestInsertedSeqNum uint16
	newestInsertedSet    bool

	missing *missingSet

	// Now returns the current monotonic wall-clock time in milliseconds.
	// Overridable for testing; defaults to a real-time clock.
	Now func() int64
}

// New creates a Buffer. Both startSize and maxSize must be powers of two,
// and startSize must not exceed maxSize.
func New(startSize, maxSize int) *Buffer {
	if startSize <= 0 || maxSize <= 0 || !isPowerOfTwo(startSize) || !isPowerOfTwo(maxSize) || startSize > maxSize {
		panic("reorder: start and max size must be powers of two, start <= max")
	}
	return &Buffer{
		maxSize: maxSize,
		slots:   make([]*Packet, startSize),
		missing: newMissingSet(),
		Now:     defaultNowMs,
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (b *Buffer) capacity() int {
	return len(b.slots)
}

func (b *Buffer) index(seq uint16) int {
	return int(seq) & (b.capacity() - 1)
}

// LastReceivedPacketMs returns the timestamp (wall-clock, not RTP) of the
// most recently inserted packet.
func (b *Buffer) LastReceivedPacketMs() int64 {
	return b.lastReceivedPacketMs
}

// LastReceivedKeyframePacketMs returns the timestamp of the most recently
// inserted packet belonging to a keyframe.
func (b *Buffer) LastReceivedKeyframePacketMs() int64 {
	return b.lastReceivedKeyframePacketMs
}

// Insert adds a newly-received packet to the buffer. See spec §4.2.1.
func (b *Buffer) Insert(p *Packet) InsertResult {
	seqNum := p.SeqNum
	idx := b.index(seqNum)

	if !b.firstPacketReceived {
		b.firstSeqNum = seqNum
		b.firstPacketReceived = true
	} else if seqnum.AheadOf(b.firstSeqNum, seqNum) {
		if b.clearedToFirst {
			// Older than an explicit ClearTo; drop silently.
			return InsertResult{}
		}
		b.firstSeqNum = seqNum
	}

	if b.slots[idx] != nil {
		if b.slots[idx].SeqNum == seqNum {
			log.Debug("reorder: dropping duplicate packet %d", seqNum)
			return InsertResult{}
		}

		for b.expand() && b.slots[b.index(seqNum)] != nil {
		}
		idx = b.index(seqNum)

		if b.slots[idx] != nil {
			log.Warn("reorder: buffer full at max size %d, clearing and requesting keyframe", b.maxSize)
			b.clearInternal()
			return InsertResult{BufferCleared: true}
		}
	}

	now := b.Now()
	b.lastReceivedPacketMs = now
	if p.IsFirstInFrame || p.Timestamp == b.lastReceivedKeyframeTimestamp {
		b.lastReceivedKeyframePacketMs = now
		b.lastReceivedKeyframeTimestamp = p.Timestamp
	}

	p.Continuous = false
	b.slots[idx] = p

	b.updateMissing(seqNum)

	return InsertResult{Packets: b.findFrames(seqNum)}
}

// InsertPadding records a zero-payload RTP packet. It occupies no slot, but
// still advances missing-set bookkeeping and probes for newly-completed
// frames starting at seqNum+1. See spec §4.2.2 and the Open Question in
// SPEC_FULL.md regarding padding and the marker bit.
func (b *Buffer) InsertPadding(seqNum uint16) InsertResult {
	b.updateMissing(seqNum)
	return InsertResult{Packets: b.findFrames(seqNum + 1)}
}

// ClearTo advances the buffer's oldest tracked sequence number past seqNum,
// dropping any slot at or behind it. Bounded to at most capacity()
// iterations regardless of wraparound. See spec §4.2.5.
func (b *Buffer) ClearTo(seqNum uint16) {
	if b.clearedToFirst && seqnum.AheadOf(b.firstSeqNum, seqNum) {
		return
	}
	if !b.firstPacketReceived {
		return
	}

	seqNum++
	diff := int(seqnum.ForwardDiff(b.firstSeqNum, seqNum))
	iterations := diff
	if iterations > b.capacity() {
		iterations = b.capacity()
	}
	for i := 0; i < iterations; i++ {
		idx := b.index(b.firstSeqNum)
		stored := b.slots[idx]
		if stored != nil && seqnum.AheadOf(seqNum, stored.SeqNum) {
			b.slots[idx] = nil
		}
		b.firstSeqNum++
	}
	b.firstSeqNum = seqNum

	b.clearedToFirst = true
	b.missing.eraseUpToExclusive(seqNum)
}

// Clear resets the buffer to its initial empty state.
func (b *Buffer) Clear() {
	b.clearInternal()
}

func (b *Buffer) clearInternal() {
	for i := range b.slots {
		b.slots[i] = nil
	}
	b.firstPacketReceived = false
	b.clearedToFirst = false
	b.lastReceivedPacketMs = 0
	b.lastReceivedKeyframePacketMs = 0
	b.newestInsertedSeqNum = 0
	b.newestInsertedSet = false
	b.missing = newMissingSet()
}

func (b *Buffer) expand() bool {
	if b.capacity() == b.maxSize {
		return false
	}
	newSize := b.maxSize
	if 2*b.capacity() < newSize {
		newSize = 2 * b.capacity()
	}
	newSlots := make([]*Packet, newSize)
	for _, p := range b.slots {
		if p != nil {
			newSlots[int(p.SeqNum)&(newSize-1)] = p
		}
	}
	b.slots = newSlots
	log.Debug("reorder: buffer expanded to %d", newSize)
	return true
}

// potentialNewFrame reports whether seqNum could be starting or continuing
// a frame that has not yet been fully found. See spec §4.2.3.
func (b *Buffer) potentialNewFrame(seqNum uint16) bool {
	idx := b.index(seqNum)
	prevIdx := b.index(seqNum - 1)

	entry := b.slots[idx]
	if entry == nil || entry.SeqNum != seqNum {
		return false
	}
	if entry.IsFirstInFrame {
		return true
	}
	prev := b.slots[prevIdx]
	if prev == nil || prev.SeqNum != seqNum-1 || prev.Timestamp != entry.Timestamp {
		return false
	}
	return prev.Continuous
}

// findFrames walks forward from seqNum, marking packets continuous and
// emitting every frame that becomes complete. See spec §4.2.3.
func (b *Buffer) findFrames(seqNum uint16) []*Packet {
	var found []*Packet

	for i := 0; i < b.capacity() && b.potentialNewFrame(seqNum); i++ {
		idx := b.index(seqNum)
		b.slots[idx].Continuous = true

		if b.slots[idx].IsLastInFrame {
			startSeqNum := seqNum
			tested := 0

			for {
				tested++
				if b.slots[b.index(startSeqNum)].IsFirstInFrame {
					break
				}
				if tested == b.capacity() {
					break
				}
				startSeqNum--
			}

			endSeqNumExclusive := seqNum + 1

			for s := startSeqNum; s != endSeqNumExclusive; s++ {
				pkt := b.slots[b.index(s)]
				pkt.IsFirstInFrame = s == startSeqNum
				pkt.IsLastInFrame = s == seqNum
				found = append(found, pkt)
			}

			b.missing.eraseUpToInclusive(seqNum)
		}
		seqNum++
	}

	return found
}

// updateMissing maintains the descending-ordered set of sequence numbers
// known to be missing, bounded to the most recent maxMissingAge entries.
// See spec §4.2.4.
func (b *Buffer) updateMissing(seqNum uint16) {
	if !b.newestInsertedSet {
		b.newestInsertedSeqNum = seqNum
		b.newestInsertedSet = true
	}

	if seqnum.AheadOf(seqNum, b.newestInsertedSeqNum) {
		oldSeqNum := seqNum - maxMissingAge
		b.missing.eraseBelow(oldSeqNum)

		if seqnum.AheadOf(oldSeqNum, b.newestInsertedSeqNum) {
			b.newestInsertedSeqNum = oldSeqNum
		}

		b.newestInsertedSeqNum++
		for seqnum.AheadOf(seqNum, b.newestInsertedSeqNum) {
			b.missing.insert(b.newestInsertedSeqNum)
			b.newestInsertedSeqNum++
		}
	} else {
		b.missing.erase(seqNum)
	}
}

// Missing returns the currently-tracked missing sequence numbers, newest
// first (descending order), as specified by spec §3's DescendingSeqCmp.
func (b *Buffer) Missing() []uint16 {
	return b.missing.values()
}
