// Package psdemux extracts elementary-stream bytes from an MPEG Program
// Stream multiplex carried across one RTP frame's worth of packets.
//
// Grounded on the original_source PsRtpPacketProcessor's Demux/FetchData
// methods and PsRtpPacket.h's wire layout constants, expressed here with
// the teacher's internal/packet.Reader big-endian cursor idiom (as used
// throughout internal/rtp for RTP/RTCP/SDES parsing) in place of the
// original's raw pointer arithmetic.
package psdemux

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/psrtp/internal/logging"
	"github.com/lanikai/psrtp/internal/packet"
)

var log = logging.NewLogger("psdemux")

// PS start codes. See spec §4.4 and §6.
const (
	startCodePackHeader  = 0x000001BA
	startCodeSystemHdr   = 0x000001BB
	startCodePSM         = 0x000001BC
	startCodePrivate1PES = 0x000001BD
	startCodeVideoPES    = 0x000001E0
	startCodeAudioPES    = 0x000001C0
)

// Elementary-stream ID ranges. See spec §6.
const (
	audioESIDLow  = 0xC0
	audioESIDHigh = 0xDF
	videoESIDLow  = 0xE0
	videoESIDHigh = 0xEF
)

// MaxFrameSize is the spec-default bound on each of the video and audio
// accumulators, used by NewState. Callers needing a different bound (e.g.
// a Processor built from a non-default Config) should use NewStateSize.
const MaxFrameSize = 1 << 20 // 1 MiB

type readMode int

const (
	readIdle readMode = iota
	readVideo
	readAudio
)

// State holds the demuxer's accumulators and the cross-packet continuation
// state needed to resume a PES body split across RTP packets. See spec §9's
// design note recommending this be modeled as a small tagged variant.
type State struct {
	VideoBuf []byte
	AudioBuf []byte

	maxVideoFrameSize int
	maxAudioFrameSize int

	mode           readMode
	bytesRemaining int

	videoStreamType, videoESID byte
	audioStreamType, audioESID byte
	videoLearned, audioLearned bool
}

// NewState allocates a demuxer with 1 MiB video and audio accumulators.
func NewState() *State {
	return NewStateSize(MaxFrameSize, MaxFrameSize)
}

// NewStateSize allocates a demuxer whose video and audio accumulators are
// each capped at maxVideoFrameSize and maxAudioFrameSize bytes
// respectively. See spec §6's MAX_VIDEO_FRAME / MAX_AUDIO_FRAME constants.
func NewStateSize(maxVideoFrameSize, maxAudioFrameSize int) *State {
	return &State{
		VideoBuf:          make([]byte, 0, maxVideoFrameSize),
		AudioBuf:          make([]byte, 0, maxAudioFrameSize),
		maxVideoFrameSize: maxVideoFrameSize,
		maxAudioFrameSize: maxAudioFrameSize,
	}
}

// Reset truncates the frame accumulators at the start of a new frame.
// Learned stream-type/ES-ID mappings are retained across frames.
func (s *State) Reset() {
	s.VideoBuf = s.VideoBuf[:0]
	s.AudioBuf = s.AudioBuf[:0]
	s.mode = readIdle
	s.bytesRemaining = 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (s *State) appendVideo(b []byte) error {
	if len(s.VideoBuf)+len(b) > s.maxVideoFrameSize {
		return errors.New("psdemux: video accumulator overflow")
	}
	s.VideoBuf = append(s.VideoBuf, b...)
	return nil
}

func (s *State) appendAudio(b []byte) error {
	if len(s.AudioBuf)+len(b) > s.maxAudioFrameSize {
		return errors.New("psdemux: audio accumulator overflow")
	}
	s.AudioBuf = append(s.AudioBuf, b...)
	return nil
}

// Demux consumes the payloads of one frame's worth of RTP packets, in
// order, appending elementary-stream bytes to s.VideoBuf and s.AudioBuf.
// See spec §4.4. Call Reset before the first packet of a new frame.
func (s *State) Demux(payloads [][]byte) error {
	for _, payload := range payloads {
		if len(payload) == 0 {
			continue
		}

		if s.bytesRemaining > 0 {
			n := min(s.bytesRemaining, len(payload))
			chunk := payload[:n]
			var err error
			switch s.mode {
			case readVideo:
				err = s.appendVideo(chunk)
			case readAudio:
				err = s.appendAudio(chunk)
			}
			if err != nil {
				return err
			}
			s.bytesRemaining -= n
			if s.bytesRemaining > 0 {
				continue
			}
			s.mode = readIdle
			payload = payload[n:]
		}

		if err := s.scan(payload); err != nil {
			return err
		}
	}
	return nil
}

// scan walks the streaming portion of one RTP packet's payload, dispatching
// on each 4-byte PS start code encountered. Returns nil when it runs out of
// bytes to scan, when a PES body continues into the next packet, or when it
// hits an unrecognized start code. An unrecognized start code silently skips
// only the rest of this packet; Demux still scans the frame's later packets.
func (s *State) scan(payload []byte) error {
	r := packet.NewReader(payload)

	for r.Remaining() >= 4 {
		code := r.ReadUint32()

		switch code {
		case startCodePackHeader:
			if err := r.CheckRemaining(10); err != nil {
				return nil
			}
			r.Skip(9)
			b13 := r.ReadByte()
			stuffing := int(b13 & 0x07)
			if err := r.CheckRemaining(stuffing); err != nil {
				return nil
			}
			r.Skip(stuffing)

		case startCodeSystemHdr:
			if err := r.CheckRemaining(2); err != nil {
				return nil
			}
			length := int(r.ReadUint16())
			if err := r.CheckRemaining(length); err != nil {
				return nil
			}
			r.Skip(length)

		case startCodePSM:
			if err := s.scanPSM(r); err != nil {
				return nil
			}

		case startCodePrivate1PES:
			bodyLength, err := s.scanPESPrefix(r)
			if err != nil {
				return nil
			}
			// Body is skipped, never accumulated; not expected to
			// continue across packets.
			r.Skip(min(bodyLength, r.Remaining()))

		case startCodeVideoPES:
			more, err := s.scanPES(r, readVideo)
			if err != nil {
				return err
			}
			if more {
				return nil
			}

		case startCodeAudioPES:
			more, err := s.scanPES(r, readAudio)
			if err != nil {
				return err
			}
			if more {
				return nil
			}

		default:
			log.Debug("psdemux: unknown start code %#08x, skipping rest of packet", code)
			return nil
		}
	}
	return nil
}

// scanPSM parses a Program Stream Map, learning the audio/video stream
// type and elementary-stream ID. See spec §4.4.
func (s *State) scanPSM(r *packet.Reader) error {
	if err := r.CheckRemaining(2); err != nil {
		return err
	}
	mapLength := int(r.ReadUint16())
	mapStart := r.Offset()

	if err := r.CheckRemaining(2); err != nil {
		return err
	}
	r.Skip(2)

	if err := r.CheckRemaining(2); err != nil {
		return err
	}
	progInfoLength := int(r.ReadUint16())
	if err := r.CheckRemaining(progInfoLength); err != nil {
		return err
	}
	r.Skip(progInfoLength)

	if err := r.CheckRemaining(2); err != nil {
		return err
	}
	esMapLength := int(r.ReadUint16())

	consumed := 0
	for consumed+4 <= esMapLength && r.Remaining() >= 4 {
		streamType := r.ReadByte()
		esID := r.ReadByte()
		esInfoLength := int(r.ReadUint16())
		if err := r.CheckRemaining(esInfoLength); err != nil {
			return err
		}
		r.Skip(esInfoLength)
		consumed += 4 + esInfoLength

		switch {
		case esID >= audioESIDLow && esID <= audioESIDHigh:
			if !s.audioLearned || s.audioStreamType != streamType || s.audioESID != esID {
				log.Debug("psdemux: audio stream mapped to es_id %#x, type %s", esID, StreamTypeName(streamType))
			}
			s.audioStreamType, s.audioESID, s.audioLearned = streamType, esID, true
		case esID >= videoESIDLow && esID <= videoESIDHigh:
			if !s.videoLearned || s.videoStreamType != streamType || s.videoESID != esID {
				log.Debug("psdemux: video stream mapped to es_id %#x, type %s", esID, StreamTypeName(streamType))
			}
			s.videoStreamType, s.videoESID, s.videoLearned = streamType, esID, true
		}
	}

	// Advance exactly program_stream_map_length past the length field,
	// regardless of how much of the map we actually parsed.
	target := mapStart + mapLength
	if target > r.Offset()+r.Remaining() || target < r.Offset() {
		return errors.New("psdemux: invalid program_stream_map_length")
	}
	r.Skip(target - r.Offset())
	return nil
}

// scanPESPrefix parses the 9-byte PES prefix (minus the already-consumed
// 4-byte start code) shared by the Private Stream 1, video, and audio PES
// cases, returning the elementary body's length.
func (s *State) scanPESPrefix(r *packet.Reader) (int, error) {
	if err := r.CheckRemaining(5); err != nil {
		return 0, err
	}
	pesPacketLength := int(r.ReadUint16())
	r.Skip(2) // flags
	headerDataLength := int(r.ReadByte())
	if err := r.CheckRemaining(headerDataLength); err != nil {
		return 0, err
	}
	r.Skip(headerDataLength)

	bodyLength := pesPacketLength - 3 - headerDataLength
	if bodyLength < 0 {
		return 0, errors.New("psdemux: negative PES body length")
	}
	if err := r.CheckRemaining(bodyLength); err != nil {
		// The body may legitimately continue past what's in this packet;
		// only truncate to what's available for scanPES's accumulation.
		return bodyLength, nil
	}
	return bodyLength, nil
}

// scanPES parses a video or audio PES header and accumulates as much of
// its body as is present in this packet. Returns true if the body
// continues into the next RTP packet.
func (s *State) scanPES(r *packet.Reader, mode readMode) (bool, error) {
	bodyLength, err := s.scanPESPrefix(r)
	if err != nil {
		return false, nil
	}

	n := min(bodyLength, r.Remaining())
	chunk := r.ReadSlice(n)

	var appendErr error
	if mode == readVideo {
		appendErr = s.appendVideo(chunk)
	} else {
		appendErr = s.appendAudio(chunk)
	}
	if appendErr != nil {
		return false, appendErr
	}

	remaining := bodyLength - n
	if remaining > 0 {
		s.mode = mode
		s.bytesRemaining = remaining
		return true, nil
	}
	return false, nil
}
