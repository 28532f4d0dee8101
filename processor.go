package psrtp

import (
	"github.com/pkg/errors"

	"github.com/lanikai/psrtp/internal/logging"
	"github.com/lanikai/psrtp/internal/psdemux"
	"github.com/lanikai/psrtp/internal/reorder"
	"github.com/lanikai/psrtp/internal/rtph264"
	"github.com/lanikai/psrtp/internal/rtppacket"
)

var log = logging.NewLogger("psrtp")

// psPackStartCode is the 4-byte PS pack header start code. A frame's first
// RTP packet is recognized by its payload beginning with this sequence.
var psPackStartCode = [4]byte{0x00, 0x00, 0x01, 0xBA}

// Processor is the single-threaded, single-SSRC ingestion pipeline of
// spec §4.6: it owns a ReorderBuffer and a PsDemuxer state, and turns
// inbound PS-over-RTP packets into outbound H.264 RTP packets.
//
// Not safe for concurrent use. Per spec §5, callers multiplexing several
// SSRCs must partition across independent Processor instances — instances
// share no state and require no cross-instance ordering.
type Processor struct {
	cfg Config

	reorder *reorder.Buffer
	demux   *psdemux.State
}

// NewProcessor creates a Processor using the given Config.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		cfg:     cfg,
		reorder: reorder.New(cfg.StartBufferSize, cfg.MaxBufferSize),
		demux:   psdemux.NewStateSize(cfg.MaxVideoFrameBytes, cfg.MaxAudioFrameBytes),
	}
}

// Result is returned by InsertRTPPacket.
type Result struct {
	// Packets are newly-produced outbound H.264 RTP packets, ready to
	// send as-is.
	Packets [][]byte

	// KeyframeRequested is true when the ReorderBuffer had to clear
	// itself after maxing out its capacity (spec §4.2.7, §7). The caller
	// should request a new keyframe from the upstream source.
	KeyframeRequested bool
}

// InsertRTPPacket implements spec §4.6's insert_rtp_packet. raw is one
// complete, serialized inbound RTP packet.
func (p *Processor) InsertRTPPacket(raw []byte) (Result, error) {
	pkt, err := rtppacket.Parse(raw)
	if err != nil {
		return Result{}, errors.Wrap(errMalformedRTPPacket, err.Error())
	}

	var ins reorder.InsertResult
	if payload := pkt.Payload(); len(payload) > 0 {
		ins = p.reorder.Insert(&reorder.Packet{
			SeqNum:         pkt.SeqNum(),
			Timestamp:      pkt.Timestamp(),
			IsFirstInFrame: isPackStartCode(payload),
			IsLastInFrame:  pkt.HasMarker(),
			RTPPacket:      pkt,
		})
	} else {
		ins = p.reorder.InsertPadding(pkt.SeqNum())
	}

	if ins.BufferCleared {
		log.Warn("psrtp: reorder buffer cleared, requesting keyframe")
		return Result{KeyframeRequested: true}, nil
	}

	if len(ins.Packets) == 0 {
		return Result{}, nil
	}

	return p.processFrame(ins.Packets)
}

// processFrame runs the demuxer and repacker over one newly-completed
// frame's packets. See spec §4.6 steps 2-4.
func (p *Processor) processFrame(packets []*reorder.Packet) (Result, error) {
	payloads := make([][]byte, len(packets))
	for i, bp := range packets {
		payloads[i] = bp.RTPPacket.(*rtppacket.Packet).Payload()
	}

	p.demux.Reset()
	demuxErr := p.demux.Demux(payloads)

	last := packets[len(packets)-1]
	p.reorder.ClearTo(last.SeqNum)

	if demuxErr != nil {
		log.Warn("psrtp: frame discarded: %v", demuxErr)
		return Result{}, nil
	}

	if len(p.demux.VideoBuf) == 0 && len(p.demux.AudioBuf) == 0 {
		log.Warn(errTooManyEmptyFrames.Error())
		return Result{}, nil
	}

	if len(p.demux.VideoBuf) == 0 {
		// Audio-only frame: buffered per spec.md's Non-goal (audio is not
		// repacketized by the CORE path), no output.
		return Result{}, nil
	}

	first := packets[0]
	out := rtph264.PackSize(p.demux.VideoBuf, first.SeqNum, last.SeqNum, first.Timestamp,
		first.RTPPacket.(*rtppacket.Packet).SSRC(), p.cfg.MaxRTPPayload, p.cfg.PayloadType)
	if out == nil {
		log.Warn("psrtp: h264 repack failed, discarding frame")
		return Result{}, nil
	}

	return Result{Packets: out}, nil
}

// Clear resets the Processor's ReorderBuffer and demuxer state, discarding
// any partially-accumulated frame.
func (p *Processor) Clear() {
	p.reorder.Clear()
	p.demux.Reset()
}

func isPackStartCode(payload []byte) bool {
	return len(payload) >= 4 &&
		payload[0] == psPackStartCode[0] &&
		payload[1] == psPackStartCode[1] &&
		payload[2] == psPackStartCode[2] &&
		payload[3] == psPackStartCode[3]
}
