package rtph264

import (
	"github.com/lanikai/psrtp/internal/packet"
	"github.com/lanikai/psrtp/internal/rtppacket"
)

// PayloadTypeG711A is the static RTP payload type for G.711 A-law audio.
// See spec §4.5's "8 for G.711-A" note.
const PayloadTypeG711A = 8

// G711AHeader packages a buffered G.711-A audio elementary stream as a
// single plain RTP packet (no fragmentation: G.711-A frames are always
// small). This is never called by Processor.InsertRTPPacket — audio
// elementary-stream repacketization is a spec.md Non-goal — but is
// exposed for callers that want it explicitly, mirroring the original
// packer's RtpPacketPacker::G711ARtpHeaderInit.
func G711AHeader(audio []byte, seq uint16, timestamp, ssrc uint32) []byte {
	buf := packet.NewWriterSize(RTPHeaderSize + ExtSize + len(audio))
	rtppacket.WriteHeader(buf, rtppacket.Header{
		PayloadType: PayloadTypeG711A,
		Marker:      true,
		Sequence:    seq,
		Timestamp:   timestamp,
		SSRC:        ssrc,
	})
	// The packet keeps the extension block WriteHeader attaches, like every
	// other packet this package builds. The writer is sized for header,
	// extension and audio, so this write cannot run short.
	buf.WriteSlice(audio)
	return buf.Bytes()
}

// NewPaddingPacket builds one empty-payload RTP packet: header and
// extension only, marker cleared. Exposed directly for reuse and
// testability (spec §8 P7/P8), mirroring the original packer's public
// RtpPacketPacker::GenerateH264PaddingRtpPacket.
func NewPaddingPacket(seq uint16, timestamp, ssrc uint32) []byte {
	buf := packet.NewWriterSize(RTPHeaderSize + ExtSize)
	rtppacket.WriteHeader(buf, rtppacket.Header{
		PayloadType: PayloadTypeH264,
		Marker:      false,
		Sequence:    seq,
		Timestamp:   timestamp,
		SSRC:        ssrc,
	})
	return buf.Bytes()
}
