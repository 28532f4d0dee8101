package psrtp

import "github.com/pkg/errors"

// Sentinel errors of the Processor. InsertRTPPacket returns
// errMalformedRTPPacket (wrapped) for input that does not parse as RTP;
// errTooManyEmptyFrames is only logged, when a frame demuxes to nothing.
// Per-frame-fatal, recoverable-silent and recoverable-signaled conditions
// are reported through Result (empty, or KeyframeRequested), not as errors.
var (
	errMalformedRTPPacket = errors.New("psrtp: malformed RTP packet")
	errTooManyEmptyFrames = errors.New("psrtp: too many empty packets, nothing demuxed")
)
