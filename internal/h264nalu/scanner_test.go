package h264nalu

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

// P6: round-trip NAL count.
func TestFindNALUs_RoundTrip(t *testing.T) {
	a := []byte{0x67, 1, 2, 3}
	b := []byte{0x68, 4, 5}
	c := []byte{0x65, 6, 7, 8, 9}
	buf := annexB(a, b, c)

	nalus, err := FindNALUs(buf)
	require.NoError(t, err)
	require.Len(t, nalus, 3)

	total := 0
	for _, n := range nalus {
		total += n.Len()
	}
	require.Equal(t, len(buf)-4*3, total)

	require.Equal(t, a, nalus[0].Bytes())
	require.Equal(t, b, nalus[1].Bytes())
	require.Equal(t, c, nalus[2].Bytes())
}

func TestFindNALUs_TooShort(t *testing.T) {
	_, err := FindNALUs([]byte{0, 0, 0})
	require.Error(t, err)
}

func TestNALU_HeaderFields(t *testing.T) {
	buf := annexB([]byte{0x65, 0xAA})
	nalus, err := FindNALUs(buf)
	require.NoError(t, err)
	require.Len(t, nalus, 1)

	n := nalus[0]
	require.Equal(t, byte(0), n.ForbiddenBit())
	require.Equal(t, byte(3), n.NRI())
	require.Equal(t, byte(5), n.Type())
}
