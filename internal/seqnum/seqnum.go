// Package seqnum implements signed comparison and ordering for 16-bit RTP
// sequence numbers under modulo-2^16 wraparound.
package seqnum

// AheadOf reports whether a is newer than b in modulo-2^16 sequence space.
// It is the Go equivalent of the teacher's RTP index/rollover arithmetic in
// internal/rtp/rtp.go, generalized to a standalone comparator.
func AheadOf(a, b uint16) bool {
	return a != b && uint16(a-b) < 1<<15
}

// ForwardDiff returns the forward distance from a to b, i.e. the number of
// steps to add to a (mod 2^16) to reach b.
func ForwardDiff(a, b uint16) uint16 {
	return b - a
}

// Less implements the "ahead of" strict ordering used to keep the
// ReorderBuffer's missing-sequence set sorted with the newest entry first
// (DescendingSeqCmp in spec terms): a sorts before b iff a is ahead of b.
func Less(a, b uint16) bool {
	return AheadOf(a, b)
}
