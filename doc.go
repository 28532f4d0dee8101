// Package psrtp ingests an MPEG Program Stream multiplexed over RTP and
// repacketizes its H.264 elementary stream as standard RFC 6184 RTP.
//
// A Processor owns one ReorderBuffer and serves a single SSRC: feed it inbound RTP
// packets with InsertRTPPacket, and it returns outbound H.264 RTP packets
// whenever a complete access unit has been demuxed and repacked. Callers
// multiplexing several SSRCs must use one Processor per SSRC; see the
// concurrency model described in Processor's doc comment.
package psrtp
