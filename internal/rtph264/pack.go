// Package rtph264 repacketizes an Annex-B H.264 access unit into a sequence
// of RTP packets per RFC 6184, aggregating small NAL units into STAP-A
// packets and fragmenting large ones into FU-A packets.
//
// Grounded on the teacher's h264Writer.packetize and appendSTAP in
// internal/rtp/h264.go, generalized from the teacher's greedy aggregation
// (merge consecutive SEI/SPS/PPS, else send as-is) into the spec's single
// linear pass with explicit byte-budget accounting and a fixed output slot
// count, since the outbound stream here must fill an exact
// [start_seq, end_seq] range rather than one packet per NALU.
package rtph264

import (
	"github.com/lanikai/psrtp/internal/h264nalu"
	"github.com/lanikai/psrtp/internal/logging"
	"github.com/lanikai/psrtp/internal/packet"
	"github.com/lanikai/psrtp/internal/rtppacket"
	"github.com/lanikai/psrtp/internal/seqnum"
)

var log = logging.NewLogger("rtph264")

const (
	// MaxRTPPayload is the largest total RTP packet size (header,
	// extension, and payload) this repacker will produce.
	MaxRTPPayload = 1360

	// RTPHeaderSize is the fixed 12-byte RTP header.
	RTPHeaderSize = 12

	// ExtSize is the size of the fixed one-byte-header RTP extension
	// attached to every outbound packet.
	ExtSize = rtppacket.ExtSize

	// PayloadTypeH264 is the dynamic payload type used for H.264 NAL units.
	PayloadTypeH264 = 98

	naluTypeSTAPA = 24
	naluTypeFUA   = 28
)

// Pack repacketizes the Annex-B NAL units in annexB into RTP packets
// occupying the inclusive sequence-number range [startSeq, endSeq], using
// the spec-default MaxRTPPayload and PayloadTypeH264. See spec §4.5.
// Returns nil if the frame cannot be packed into exactly that many packets
// (sequence-range violation), logging a warning.
func Pack(annexB []byte, startSeq, endSeq uint16, timestamp, ssrc uint32) [][]byte {
	return PackSize(annexB, startSeq, endSeq, timestamp, ssrc, MaxRTPPayload, PayloadTypeH264)
}

// PackSize is Pack generalized to a caller-supplied payload-size bound and
// RTP payload type, so a Processor built from a non-default Config (spec
// §6's MAX_RTP_PAYLOAD / PAYLOAD_TYPE) can drive the same algorithm.
func PackSize(annexB []byte, startSeq, endSeq uint16, timestamp, ssrc uint32, maxRTPPayload int, payloadType byte) [][]byte {
	nalus, err := h264nalu.FindNALUs(annexB)
	if err != nil {
		log.Warn("rtph264: %v", err)
		return nil
	}

	payloads := packPayloadsSize(nalus, maxRTPPayload)

	count := int(seqnum.ForwardDiff(startSeq, endSeq)) + 1
	if len(payloads) > count {
		log.Warn("rtph264: packed %d payloads into a %d-packet sequence range, discarding frame", len(payloads), count)
		return nil
	}
	if len(payloads) < count {
		padding := make([][]byte, count-len(payloads))
		payloads = append(padding, payloads...)
	}

	out := make([][]byte, len(payloads))
	for i, payload := range payloads {
		seq := startSeq + uint16(i)
		marker := i == len(payloads)-1

		buf := packet.NewWriterSize(RTPHeaderSize + ExtSize + len(payload))
		rtppacket.WriteHeader(buf, rtppacket.Header{
			PayloadType: payloadType,
			Marker:      marker,
			Sequence:    seq,
			Timestamp:   timestamp,
			SSRC:        ssrc,
		})
		if len(payload) > 0 {
			if err := buf.WriteSlice(payload); err != nil {
				log.Warn("rtph264: %v", err)
				return nil
			}
		}
		out[i] = buf.Bytes()
	}
	return out
}

// packPayloads runs the single linear pass of spec §4.5 over nalus, using
// the spec-default MaxRTPPayload bound.
func packPayloads(nalus []h264nalu.NALU) [][]byte {
	return packPayloadsSize(nalus, MaxRTPPayload)
}

// packPayloadsSize is packPayloads generalized to a caller-supplied
// per-packet size bound, returning one RTP payload (post header+extension)
// per outbound packet.
func packPayloadsSize(nalus []h264nalu.NALU, maxRTPPayload int) [][]byte {
	var out [][]byte
	var pending []h264nalu.NALU
	pendingLen := 0

	for i := 0; i < len(nalus); i++ {
		u := nalus[i]
		pending = append(pending, u)
		pendingLen += u.Len()
		isLast := i == len(nalus)-1

		switch len(pending) {
		case 1:
			total := RTPHeaderSize + ExtSize + pendingLen
			switch {
			case total == maxRTPPayload || (total < maxRTPPayload && isLast):
				out = append(out, singleNALPayload(u))
				pending, pendingLen = nil, 0
			case total > maxRTPPayload:
				out = append(out, fuaFragmentsSize(u, maxRTPPayload)...)
				pending, pendingLen = nil, 0
			}
		default:
			aggregateOverhead := ExtSize + 1 + 2*len(pending)
			total := RTPHeaderSize + aggregateOverhead + pendingLen
			switch {
			case total == maxRTPPayload || (total < maxRTPPayload && isLast):
				out = append(out, stapAPayload(pending))
				pending, pendingLen = nil, 0
			case total > maxRTPPayload:
				firstGroup := pending[:len(pending)-1]
				if len(firstGroup) == 1 {
					out = append(out, singleNALPayload(firstGroup[0]))
				} else {
					out = append(out, stapAPayload(firstGroup))
				}
				pending, pendingLen = nil, 0
				i-- // reprocess u next iteration, now as pendingCount == 1
			}
		}
	}
	return out
}

func singleNALPayload(n h264nalu.NALU) []byte {
	return append([]byte(nil), n.Bytes()...)
}

// stapAPayload aggregates nalus into one STAP-A payload.
// See https://tools.ietf.org/html/rfc6184#section-5.7.1 and spec §4.5's
// resolution of the STAP-A byte-order Open Question: size prefixes are
// big-endian.
func stapAPayload(nalus []h264nalu.NALU) []byte {
	payload := []byte{naluTypeSTAPA}
	for _, n := range nalus {
		b := n.Bytes()
		size := uint16(len(b))
		payload = append(payload, byte(size>>8), byte(size))
		payload = append(payload, b...)
	}
	return payload
}

// fuaFragments fragments a single NALU too large for one packet into a
// sequence of FU-A payloads, using the spec-default MaxRTPPayload bound.
// See https://tools.ietf.org/html/rfc6184#section-5.8.
func fuaFragments(n h264nalu.NALU) [][]byte {
	return fuaFragmentsSize(n, MaxRTPPayload)
}

// fuaFragmentsSize is fuaFragments generalized to a caller-supplied
// per-packet size bound.
func fuaFragmentsSize(n h264nalu.NALU, maxRTPPayload int) [][]byte {
	raw := n.Bytes()
	indicator := raw[0]&0xe0 | naluTypeFUA
	naluType := raw[0] & 0x1f
	body := raw[1:]

	maxFragBody := maxRTPPayload - RTPHeaderSize - ExtSize - 2
	var frags [][]byte
	for i := 0; i < len(body); i += maxFragBody {
		end := i + maxFragBody
		last := end >= len(body)
		if last {
			end = len(body)
		}

		header := naluType
		if i == 0 {
			header |= 0x80
		}
		if last {
			header |= 0x40
		}

		payload := make([]byte, 2+(end-i))
		payload[0] = indicator
		payload[1] = header
		copy(payload[2:], body[i:end])
		frags = append(frags, payload)
	}
	return frags
}
