// Command psrtpgwd is a PS-over-RTP ingestion gateway: it listens for
// RTP packets on a UDP socket, feeds them to a psrtp.Processor, and
// writes the resulting H.264 RTP packets to an outbound UDP
// destination. It also serves a websocket control channel reporting
// keyframe requests and per-frame stats.
//
// Grounded on the teacher's cmd/alohartcd (pflag-based flag
// declarations in help.go, the main/init split), adapted from a WebRTC
// peer-connection daemon to a one-way ingestion gateway.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/lanikai/psrtp"
	"github.com/lanikai/psrtp/internal/control"
	"github.com/lanikai/psrtp/internal/logging"
	"github.com/lanikai/psrtp/internal/record"
)

var log = logging.NewLogger("psrtpgwd")

var (
	flagListen      string
	flagMulticast   string
	flagSend        string
	flagControlAddr string
	flagRecordFile  string
	flagReusePort   bool
	flagHelp        bool
)

func init() {
	flag.StringVarP(&flagListen, "listen", "l", ":5004", "UDP address to receive PS-over-RTP on")
	flag.StringVarP(&flagMulticast, "multicast", "g", "", "Multicast group to join on the listen interface (default: unicast)")
	flag.StringVarP(&flagSend, "send", "s", "127.0.0.1:5006", "UDP address to send repacketized H.264 RTP to")
	flag.StringVarP(&flagControlAddr, "control", "c", ":8088", "HTTP address for the websocket control channel")
	flag.StringVarP(&flagRecordFile, "record", "r", "", "Optional MP4 file to additionally record the ingested video to")
	flag.BoolVarP(&flagReusePort, "reuseport", "p", false, "Set SO_REUSEPORT, for running one gateway instance per SSRC partition on a shared port")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `PS-over-RTP ingestion gateway

Usage: psrtpgwd [OPTION]...

Input:
  -l, --listen=ADDR      UDP address to receive PS-over-RTP on (default: :5004)
  -g, --multicast=ADDR   Multicast group to join (default: unicast)
  -p, --reuseport        Set SO_REUSEPORT (default: disabled)

Output:
  -s, --send=ADDR        UDP address to send H.264 RTP to (default: 127.0.0.1:5006)
  -c, --control=ADDR     HTTP address for the control websocket (default: :8088)
  -r, --record=FILE      Also record ingested video to an MP4 file

Miscellaneous:
  -h, --help             Print this help message and exit
`

func main() {
	flag.Parse()
	if flagHelp {
		fmt.Print(helpString)
		os.Exit(0)
	}

	conn, err := listen(flagListen, flagMulticast, flagReusePort)
	if err != nil {
		log.Error("psrtpgwd: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	out, err := net.Dial("udp", flagSend)
	if err != nil {
		log.Error("psrtpgwd: dialing %s: %v", flagSend, err)
		os.Exit(1)
	}
	defer out.Close()

	hub := control.NewHub()
	go func() {
		log.Info("psrtpgwd: control channel listening on %s", flagControlAddr)
		if err := http.ListenAndServe(flagControlAddr, hub); err != nil {
			log.Error("psrtpgwd: control channel: %v", err)
		}
	}()

	var rec *record.Recorder
	if flagRecordFile != "" {
		rec, err = record.New(flagRecordFile)
		if err != nil {
			log.Error("psrtpgwd: %v", err)
			os.Exit(1)
		}
		defer rec.Close()
	}

	proc := psrtp.NewProcessor(psrtp.DefaultConfig())

	log.Info("psrtpgwd: listening on %s, forwarding to %s", flagListen, flagSend)
	if err := serve(conn, out, proc, hub, rec); err != nil {
		log.Error("psrtpgwd: %v", err)
		os.Exit(1)
	}
}

// listen opens the inbound UDP socket, optionally joining a multicast
// group (via ipv4.PacketConn) and/or setting SO_REUSEPORT so multiple
// gateway instances can share one port, each partitioned by SSRC per
// spec §5.
func listen(addr, multicastGroup string, reusePort bool) (net.PacketConn, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		}
	}

	conn, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}

	if multicastGroup == "" {
		return conn, nil
	}

	group, err := net.ResolveUDPAddr("udp", multicastGroup)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "resolving multicast group %s", multicastGroup)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "joining multicast group %s", multicastGroup)
	}
	if err := pc.SetControlMessage(ipv4.FlagDst, true); err != nil {
		log.Warn("psrtpgwd: enabling control messages: %v", err)
	}

	return conn, nil
}

// serve runs the receive loop: read one UDP datagram at a time, feed it
// to proc, forward any outbound packets, and publish control events.
func serve(conn net.PacketConn, out net.Conn, proc *psrtp.Processor, hub *control.Hub, rec *record.Recorder) error {
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return errors.Wrap(err, "reading UDP packet")
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		result, err := proc.InsertRTPPacket(raw)
		if err != nil {
			log.Warn("psrtpgwd: malformed packet: %v", err)
			continue
		}

		if result.KeyframeRequested {
			hub.Publish(control.Event{Type: control.EventKeyframeRequested, KeyframeRequested: true})
			continue
		}

		if len(result.Packets) == 0 {
			continue
		}

		for _, pkt := range result.Packets {
			if _, err := out.Write(pkt); err != nil {
				log.Warn("psrtpgwd: forwarding packet: %v", err)
			}
		}

		hub.Publish(control.Event{Type: control.EventFrame, FrameBytes: sumLen(result.Packets), PacketCount: len(result.Packets)})
	}
}

func sumLen(packets [][]byte) int {
	n := 0
	for _, p := range packets {
		n += len(p)
	}
	return n
}
