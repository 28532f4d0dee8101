package seqnum

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAheadOf(t *testing.T) {
	require.True(t, AheadOf(2, 1))
	require.False(t, AheadOf(1, 2))
	require.False(t, AheadOf(1, 1))

	// Wrap-around: 0 is ahead of 65535.
	require.True(t, AheadOf(0, 65535))
	require.False(t, AheadOf(65535, 0))
}

func TestForwardDiff(t *testing.T) {
	require.Equal(t, uint16(1), ForwardDiff(1000, 1001))
	require.Equal(t, uint16(5), ForwardDiff(65533, 2)) // wraps: 65533,65534,65535,0,1,2
}

// P9: ordering operations must be invariant under a constant modular shift of
// the sequence-number stream.
func TestAheadOfShiftInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		a := uint16(r.Intn(1 << 16))
		b := uint16(r.Intn(1 << 16))
		shift := uint16(r.Intn(1 << 16))
		require.Equal(t, AheadOf(a, b), AheadOf(a+shift, b+shift))
	}
}
