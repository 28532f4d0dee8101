package rtppacket

import (
	"github.com/lanikai/psrtp/internal/packet"
)

// ExtSize is the size in bytes of the one-byte-header RTP extension the
// repacker always attaches: a 4-byte profile plus four 4-byte words.
// See spec §4.5.
const ExtSize = 20

// extProfile is the one-byte-header RTP extension profile identifier,
// followed by a length field of 4 (32-bit words).
var extProfile = [4]byte{0xBE, 0xDE, 0x00, 0x04}

// Header holds the fields needed to serialize one outbound RTP packet.
type Header struct {
	PayloadType byte
	Marker      bool
	Sequence    uint16
	Timestamp   uint32
	SSRC        uint32
}

// WriteHeader writes the 12-byte fixed RTP header followed by the fixed
// one-byte-header extension block mandated by spec §4.5: four 4-byte
// extension words, the last beginning with 0xF0 (id=15, "stop parsing").
func WriteHeader(w *packet.Writer, h Header) {
	w.WriteByte(rtpVersion<<6 | 0x10) // padding=0, extension=1, csrc_count=0
	if h.Marker {
		w.WriteByte(0x80 | h.PayloadType)
	} else {
		w.WriteByte(h.PayloadType)
	}
	w.WriteUint16(h.Sequence)
	w.WriteUint32(h.Timestamp)
	w.WriteUint32(h.SSRC)

	for _, b := range extProfile {
		w.WriteByte(b)
	}
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteUint32(0)
	w.WriteByte(0xF0)
	w.WriteByte(0)
	w.WriteByte(0)
	w.WriteByte(0)
}
