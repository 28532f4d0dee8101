// Package rtppacket implements the RtpPacket collaborator contract (spec
// §6): a parsed view of one RTP data packet, plus a writer for packets the
// H.264 repacker produces.
//
// Grounded on the teacher's rtpHeader type and readFrom/writeTo methods in
// internal/rtp/rtp.go, split out into a standalone, exported type since the
// ingestion pipeline has no peer connection or SRTP context of its own.
package rtppacket

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/psrtp/internal/packet"
)

const (
	rtpVersion    = 2
	rtpHeaderSize = 12
)

// Packet is a parsed RTP packet. It satisfies the RtpPacket collaborator
// contract the core calls against: seq_num, timestamp, ssrc, has_marker,
// payload, set_sequence_number, set_marker, parse, data.
type Packet struct {
	version     byte
	padding     bool
	extension   bool
	marker      bool
	payloadType byte
	sequence    uint16
	timestamp   uint32
	ssrc        uint32
	csrc        []uint32

	extHeader []byte

	raw        []byte
	payloadOff int
}

// Parse decodes buf as an RTP packet. buf is retained, not copied; the
// returned Packet's Data and Payload views alias it.
func Parse(buf []byte) (*Packet, error) {
	r := packet.NewReader(buf)
	if err := r.CheckRemaining(rtpHeaderSize); err != nil {
		return nil, errors.Errorf("rtppacket: short buffer: %v", err)
	}

	p := &Packet{raw: buf}

	b0 := r.ReadByte()
	p.version = b0 >> 6
	p.padding = b0&0x20 != 0
	p.extension = b0&0x10 != 0
	csrcCount := int(b0 & 0x0f)
	if p.version != rtpVersion {
		return nil, errors.Errorf("rtppacket: unsupported RTP version %d", p.version)
	}

	if err := r.CheckRemaining(1 + 2 + 4 + 4 + 4*csrcCount); err != nil {
		return nil, errors.Errorf("rtppacket: short header: %v", err)
	}

	b1 := r.ReadByte()
	p.marker = b1&0x80 != 0
	p.payloadType = b1 & 0x7f
	p.sequence = r.ReadUint16()
	p.timestamp = r.ReadUint32()
	p.ssrc = r.ReadUint32()
	for i := 0; i < csrcCount; i++ {
		p.csrc = append(p.csrc, r.ReadUint32())
	}

	if p.extension {
		if err := r.CheckRemaining(4); err != nil {
			return nil, errors.Errorf("rtppacket: short extension header: %v", err)
		}
		r.Skip(2) // profile
		extWords := int(r.ReadUint16())
		if err := r.CheckRemaining(4 * extWords); err != nil {
			return nil, errors.Errorf("rtppacket: short extension: %v", err)
		}
		p.extHeader = r.ReadSlice(4 * extWords)
	}

	p.payloadOff = r.Offset()
	return p, nil
}

// SeqNum returns the packet's 16-bit RTP sequence number.
func (p *Packet) SeqNum() uint16 { return p.sequence }

// Timestamp returns the packet's RTP timestamp.
func (p *Packet) Timestamp() uint32 { return p.timestamp }

// SSRC returns the packet's synchronization source identifier.
func (p *Packet) SSRC() uint32 { return p.ssrc }

// HasMarker reports the RTP marker bit.
func (p *Packet) HasMarker() bool { return p.marker }

// Payload returns the packet's payload bytes, aliasing the backing buffer.
func (p *Packet) Payload() []byte {
	return p.raw[p.payloadOff:]
}

// SetSequenceNumber overwrites both the parsed field and the wire bytes.
func (p *Packet) SetSequenceNumber(seq uint16) {
	p.sequence = seq
	if len(p.raw) >= 4 {
		p.raw[2] = byte(seq >> 8)
		p.raw[3] = byte(seq)
	}
}

// SetMarker overwrites both the parsed field and the wire bytes.
func (p *Packet) SetMarker(marker bool) {
	p.marker = marker
	if len(p.raw) >= 2 {
		if marker {
			p.raw[1] |= 0x80
		} else {
			p.raw[1] &^= 0x80
		}
	}
}

// Data returns the packet's complete backing buffer, header included.
func (p *Packet) Data() []byte {
	return p.raw
}
