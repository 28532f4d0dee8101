package psrtp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildRTP constructs a minimal inbound RTP packet: 12-byte header (no
// extension), given payload.
func buildRTP(seq uint16, timestamp, ssrc uint32, marker bool, payload []byte) []byte {
	buf := make([]byte, 12+len(payload))
	buf[0] = 2 << 6 // version 2, padding 0, extension 0, csrc_count 0
	if marker {
		buf[1] = 0x80
	}
	binary.BigEndian.PutUint16(buf[2:], seq)
	binary.BigEndian.PutUint32(buf[4:], timestamp)
	binary.BigEndian.PutUint32(buf[8:], ssrc)
	copy(buf[12:], payload)
	return buf
}

func psmSegment(streamType, esID byte) []byte {
	entry := []byte{streamType, esID, 0, 0}
	inner := []byte{0, 0}
	inner = append(inner, 0, 0)
	inner = append(inner, 0, byte(len(entry)))
	inner = append(inner, entry...)

	seg := []byte{0, 0, 1, 0xBC}
	seg = append(seg, byte(len(inner)>>8), byte(len(inner)))
	seg = append(seg, inner...)
	return seg
}

func videoPES(body []byte) []byte {
	pesPacketLength := 3 + len(body)
	seg := []byte{0, 0, 1, 0xE0}
	seg = append(seg, byte(pesPacketLength>>8), byte(pesPacketLength))
	seg = append(seg, 0, 0, 0)
	seg = append(seg, body...)
	return seg
}

// Scenario 1: in-order single-frame ingestion produces exactly 5 outbound
// packets once the marker packet completes the frame.
func TestProcessor_SingleFrame(t *testing.T) {
	idr := make([]byte, 600)
	idr[0] = 0x65
	body := append([]byte{0, 0, 0, 1}, idr...)

	ps := videoPES(body)
	psm := psmSegment(0x1B, 0xE0)

	first := append([]byte{0, 0, 1, 0xBA}, make([]byte, 10)...) // minimal pack header, stuffing=0
	first = append(first, psm...)
	first = append(first, ps...)

	p := NewProcessor(DefaultConfig())

	var last Result
	for i, seq := range []uint16{1000, 1001, 1002, 1003, 1004} {
		var payload []byte
		if i == 0 {
			payload = first
		} else {
			payload = []byte{byte(i)} // arbitrary continuation filler, non-empty
		}
		res, err := p.InsertRTPPacket(buildRTP(seq, 90000, 1, seq == 1004, payload))
		require.NoError(t, err)
		if seq == 1004 {
			last = res
		}
	}

	require.Len(t, last.Packets, 5)
	require.False(t, last.KeyframeRequested)
}

func TestProcessor_Duplicate(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	res1, err := p.InsertRTPPacket(buildRTP(1000, 1, 1, false, []byte{1, 2, 3}))
	require.NoError(t, err)
	require.Empty(t, res1.Packets)

	res2, err := p.InsertRTPPacket(buildRTP(1000, 1, 1, false, []byte{1, 2, 3}))
	require.NoError(t, err)
	require.Empty(t, res2.Packets)
	require.False(t, res2.KeyframeRequested)
}

func TestProcessor_MalformedPacket(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	_, err := p.InsertRTPPacket([]byte{1, 2, 3})
	require.Error(t, err)
}
