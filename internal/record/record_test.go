package record

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// annexBFrame joins NAL units into one Annex-B buffer, each preceded by a
// 4-byte start code.
func annexBFrame(nalus ...[]byte) []byte {
	var buf []byte
	for _, n := range nalus {
		buf = append(buf, 0, 0, 0, 1)
		buf = append(buf, n...)
	}
	return buf
}

func TestRecorder_WaitsForParameterSets(t *testing.T) {
	dir, err := ioutil.TempDir("", "record")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	r, err := New(dir + "/out.mp4")
	require.NoError(t, err)

	// A keyframe slice with no SPS/PPS yet must not open the track.
	err = r.WriteFrame(annexBFrame([]byte{0x65, 0x01, 0x02}), 1000, true)
	require.NoError(t, err)
	require.False(t, r.header)

	require.NoError(t, r.Close())
}
