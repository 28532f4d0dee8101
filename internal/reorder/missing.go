package reorder

import (
	"sort"
	"time"

	"github.com/lanikai/psrtp/internal/seqnum"
)

// missingSet is a small ordered set of sequence numbers, kept sorted with
// the newest entry first (descending by AheadOf), matching spec §4.1's
// DescendingSeqCmp. It is backed by a slice rather than a balanced tree: the
// set is bounded to at most maxMissingAge entries (§4.2.4, invariant d), so
// linear insertion/removal is cheap and the implementation stays simple, as
// the teacher favors plain slices over generic containers throughout.
type missingSet struct {
	// entries is sorted so that entries[0] is the newest (per AheadOf).
	entries []uint16
}

func newMissingSet() *missingSet {
	return &missingSet{}
}

func (m *missingSet) insert(v uint16) {
	i := sort.Search(len(m.entries), func(i int) bool {
		// entries is sorted descending (newest first); find the first
		// entry that is not ahead of v, i.e. the insertion point.
		return !seqnum.AheadOf(m.entries[i], v)
	})
	if i < len(m.entries) && m.entries[i] == v {
		return
	}
	m.entries = append(m.entries, 0)
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = v
}

func (m *missingSet) erase(v uint16) {
	for i, e := range m.entries {
		if e == v {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

// eraseUpToInclusive removes every entry that is seq itself or newer than
// seq, keeping only entries strictly older than seq. Equivalent to the
// C++ original's erase(begin(), upper_bound(seq)).
func (m *missingSet) eraseUpToInclusive(seq uint16) {
	cut := 0
	for cut < len(m.entries) && !seqnum.AheadOf(seq, m.entries[cut]) {
		cut++
	}
	m.entries = m.entries[cut:]
}

// eraseUpToExclusive removes every entry strictly newer than seq, keeping
// seq itself (if present) and anything older.
func (m *missingSet) eraseUpToExclusive(seq uint16) {
	cut := 0
	for cut < len(m.entries) && seqnum.AheadOf(m.entries[cut], seq) {
		cut++
	}
	m.entries = m.entries[cut:]
}

// eraseBelow removes every entry strictly older than seq, keeping seq
// itself (if present) and anything newer. Older entries sit at the tail of
// the descending slice.
func (m *missingSet) eraseBelow(seq uint16) {
	cut := len(m.entries)
	for cut > 0 && seqnum.AheadOf(seq, m.entries[cut-1]) {
		cut--
	}
	m.entries = m.entries[:cut]
}

func (m *missingSet) values() []uint16 {
	out := make([]uint16, len(m.entries))
	copy(out, m.entries)
	return out
}

func defaultNowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
