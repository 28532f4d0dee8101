package rtph264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func annexB(nalus ...[]byte) []byte {
	var buf []byte
	for _, n := range nalus {
		buf = append(buf, 0, 0, 0, 1)
		buf = append(buf, n...)
	}
	return buf
}

func nalu(typ byte, n int) []byte {
	b := make([]byte, n)
	b[0] = typ
	for i := 1; i < n; i++ {
		b[i] = byte(i)
	}
	return b
}

// Scenario 1 / P7: one 600-byte IDR NAL packed into exactly 5 packets with
// consecutive sequence numbers, marker only on the last.
func TestPack_SingleFrame(t *testing.T) {
	buf := annexB(nalu(0x65, 600))

	out := Pack(buf, 1000, 1004, 90000, 1)
	require.Len(t, out, 5)

	for i, pkt := range out {
		require.LessOrEqual(t, len(pkt), MaxRTPPayload)
		seq := uint16(pkt[2])<<8 | uint16(pkt[3])
		require.Equal(t, uint16(1000+i), seq)
		marker := pkt[1]&0x80 != 0
		require.Equal(t, i == 4, marker)
	}
}

// P8: every outbound packet respects the size bound, even for a large
// aggregate of small NALUs.
func TestPack_SizeBound(t *testing.T) {
	var nalus [][]byte
	for i := 0; i < 20; i++ {
		nalus = append(nalus, nalu(0x06, 50))
	}
	buf := annexB(nalus...)

	out := Pack(buf, 0, uint16(len(nalus)-1), 1, 1)
	for _, pkt := range out {
		require.LessOrEqual(t, len(pkt), MaxRTPPayload)
	}
}

// Scenario 6: too many large NALUs for the given sequence-number range
// yields no output.
func TestPack_SequenceOverflow(t *testing.T) {
	var nalus [][]byte
	for i := 0; i < 10; i++ {
		nalus = append(nalus, nalu(0x65, 1300))
	}
	buf := annexB(nalus...)

	out := Pack(buf, 100, 102, 1, 1)
	require.Nil(t, out)
}

// Fragmented NALUs produce FU-A packets whose indicator marks type 28.
func TestPack_Fragmentation(t *testing.T) {
	buf := annexB(nalu(0x65, 4000))

	out := Pack(buf, 0, 9, 1, 1)
	require.NotEmpty(t, out)
	for _, pkt := range out {
		require.LessOrEqual(t, len(pkt), MaxRTPPayload)
		if len(pkt) > RTPHeaderSize+ExtSize {
			require.Equal(t, byte(naluTypeFUA), pkt[RTPHeaderSize+ExtSize]&0x1f)
		}
	}
}
