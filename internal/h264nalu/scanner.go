// Package h264nalu scans an Annex-B H.264 byte stream into NAL unit views.
//
// Modeled on the teacher's internal/media/h264.NALU type and the start-code
// scanning idiom used throughout internal/rtp/h264.go, generalized here into
// a standalone scanner per the original PsRtpPacketProcessor's H264FindNALUs.
package h264nalu

import "fmt"

// NALU is a view into a caller-owned backing buffer: an offset and length,
// never a copy. It must not outlive the buffer it was scanned from.
type NALU struct {
	buf    []byte
	offset int
	length int
}

// Bytes returns the NALU's bytes, still backed by the original buffer.
func (n NALU) Bytes() []byte {
	return n.buf[n.offset : n.offset+n.length]
}

func (n NALU) Len() int { return n.length }

// ForbiddenBit, NRI and Type decode the one-byte NAL unit header.
// See https://tools.ietf.org/html/rfc6184#section-5.2
func (n NALU) ForbiddenBit() byte { return n.buf[n.offset] & 0x80 >> 7 }
func (n NALU) NRI() byte          { return n.buf[n.offset] & 0x60 >> 5 }
func (n NALU) Type() byte         { return n.buf[n.offset] & 0x1f }

// startCode is the Annex-B NAL unit delimiter.
var startCode = [4]byte{0x00, 0x00, 0x00, 0x01}

// FindNALUs scans buf for Annex-B start codes and returns a view per NAL
// unit found. buf must be longer than 4 bytes and begin with a start code.
// See spec §4.3.
func FindNALUs(buf []byte) ([]NALU, error) {
	if len(buf) <= 4 {
		return nil, fmt.Errorf("h264nalu: buffer too short (%d bytes)", len(buf))
	}

	var starts []int
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == startCode[0] && buf[i+1] == startCode[1] && buf[i+2] == startCode[2] && buf[i+3] == startCode[3] {
			starts = append(starts, i+4)
		}
	}
	if len(starts) == 0 {
		return nil, fmt.Errorf("h264nalu: no start code found")
	}

	nalus := make([]NALU, len(starts))
	for i, offset := range starts {
		var length int
		if i+1 < len(starts) {
			length = starts[i+1] - 4 - offset
		} else {
			length = len(buf) - offset
		}
		nalus[i] = NALU{buf: buf, offset: offset, length: length}
	}
	return nalus, nil
}
