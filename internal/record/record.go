// Package record is an optional sink that muxes reassembled H.264 access
// units into an MP4 file for offline inspection.
//
// Grounded on the teacher's internal/media.OpenMP4 (joy4 demuxer usage,
// h264parser.CodecData, SPS/PPS handling), run in reverse: here we mux
// rather than demux, driven by internal/psdemux's VideoBuf instead of a
// joy4 av.Packet stream. This recovers a feature present in the
// original_source mediasoup worker (which persists demuxed media for
// debugging) that spec.md's distillation dropped as out of CORE scope.
package record

import (
	"os"
	"time"

	errors "golang.org/x/xerrors"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/codec/h264parser"
	"github.com/nareix/joy4/format/mp4"

	"github.com/lanikai/psrtp/internal/h264nalu"
	"github.com/lanikai/psrtp/internal/logging"
)

var log = logging.NewLogger("record")

// rtpClockRate is the H.264 RTP clock rate (spec §6), used to convert
// RTP timestamps into joy4's time.Duration packet timestamps.
const rtpClockRate = 90000

// Recorder appends successive frames' Annex-B access units to an MP4
// file, one H.264 video track. Never required by the CORE path; a
// caller wires it in explicitly alongside a Processor when recording is
// wanted.
type Recorder struct {
	file   *os.File
	muxer  *mp4.Muxer
	header bool

	sps, pps []byte
	baseTS   uint32
	haveBase bool
}

// New creates a Recorder writing to filename. The file is created,
// truncating any existing content.
func New(filename string) (*Recorder, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Errorf("record: create %s: %v", filename, err)
	}
	return &Recorder{
		file:  f,
		muxer: mp4.NewMuxer(f),
	}, nil
}

// WriteFrame appends one access unit (Annex-B encoded, as produced by
// psdemux.State.VideoBuf) at the given RTP timestamp. The first call made
// once both an SPS and a PPS have been seen opens the track and sets the
// recording's time base. Until then, SPS/PPS NAL units are remembered and
// all other NAL units are dropped, never written.
func (r *Recorder) WriteFrame(annexB []byte, rtpTimestamp uint32, isKeyframe bool) error {
	nalus, err := h264nalu.FindNALUs(annexB)
	if err != nil {
		return errors.Errorf("record: scanning access unit: %v", err)
	}

	var videoNALUs [][]byte
	for _, n := range nalus {
		switch n.Type() {
		case 7: // SPS
			r.sps = append([]byte(nil), n.Bytes()...)
		case 8: // PPS
			r.pps = append([]byte(nil), n.Bytes()...)
		default:
			videoNALUs = append(videoNALUs, n.Bytes())
		}
	}

	if !r.header {
		if r.sps == nil || r.pps == nil {
			// Wait for a keyframe carrying parameter sets before opening
			// the track.
			return nil
		}
		codecData, err := h264parser.NewCodecDataFromSPSAndPPS(r.sps, r.pps)
		if err != nil {
			return errors.Errorf("record: parsing SPS/PPS: %v", err)
		}
		if err := r.muxer.WriteHeader([]av.CodecData{codecData}); err != nil {
			return errors.Errorf("record: writing header: %v", err)
		}
		r.header = true
		r.baseTS = rtpTimestamp
		r.haveBase = true
	}

	if len(videoNALUs) == 0 {
		return nil
	}

	// joy4's mp4 muxer expects AVCC framing (4-byte big-endian length
	// prefix per NALU), not the Annex-B start codes psdemux accumulates.
	var data []byte
	for _, n := range videoNALUs {
		var lenPrefix [4]byte
		lenPrefix[0] = byte(len(n) >> 24)
		lenPrefix[1] = byte(len(n) >> 16)
		lenPrefix[2] = byte(len(n) >> 8)
		lenPrefix[3] = byte(len(n))
		data = append(data, lenPrefix[:]...)
		data = append(data, n...)
	}

	pkt := av.Packet{
		Idx:        0,
		IsKeyFrame: isKeyframe,
		Time:       rtpTimeSince(r.baseTS, rtpTimestamp),
		Data:       data,
	}
	if err := r.muxer.WritePacket(pkt); err != nil {
		return errors.Errorf("record: writing packet: %v", err)
	}
	return nil
}

// rtpTimeSince converts the distance between two RTP timestamps (in
// rtpClockRate units, assumed never to wrap within one recording) into a
// joy4 packet duration.
func rtpTimeSince(base, ts uint32) time.Duration {
	delta := int64(ts) - int64(base)
	return time.Duration(delta) * time.Second / rtpClockRate
}

// Close finalizes the MP4 trailer and closes the underlying file. A
// Recorder that never saw an SPS/PPS pair writes no header; Close is
// still safe to call.
func (r *Recorder) Close() error {
	defer r.file.Close()
	if !r.header {
		log.Warn("record: closing without ever seeing SPS/PPS, file has no video track")
		return nil
	}
	if err := r.muxer.WriteTrailer(); err != nil {
		return errors.Errorf("record: writing trailer: %v", err)
	}
	return nil
}
