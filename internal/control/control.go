// Package control implements a small websocket control channel a gateway
// daemon uses to push keyframe-request events and per-frame stats to an
// operator dashboard or upstream signaling process.
//
// Grounded on the teacher's internal/signaling local web signaler
// (handleWebsocket's upgrade-then-loop idiom), repurposed here for
// one-way server-to-client event push instead of SDP/ICE exchange.
package control

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lanikai/psrtp/internal/logging"
)

var log = logging.NewLogger("control")

// Event is a single message pushed to every connected client.
type Event struct {
	Type string `json:"type"`

	// SSRC identifies which Processor instance the event concerns, per
	// spec §5's one-Processor-per-SSRC partitioning.
	SSRC uint32 `json:"ssrc"`

	// KeyframeRequested mirrors psrtp.Result.KeyframeRequested (spec
	// §4.2.7's buffer_cleared signal, §4.6 step 5).
	KeyframeRequested bool `json:"keyframeRequested,omitempty"`

	// FrameBytes and PacketCount report stats for one successfully
	// repacketized frame, when Type is "frame".
	FrameBytes  int `json:"frameBytes,omitempty"`
	PacketCount int `json:"packetCount,omitempty"`
}

const (
	EventKeyframeRequested = "keyframeRequested"
	EventFrame             = "frame"
)

// Hub upgrades incoming HTTP connections to websockets and broadcasts
// Events to all of them. The zero value is not usable; use NewHub.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty Hub, ready to accept connections via
// ServeHTTP and broadcast via Publish.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it to receive
// broadcast Events until the client disconnects. cmd/psrtpgwd serves it
// at every path of its control address.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("control: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, ws)
		h.mu.Unlock()
		ws.Close()
	}()

	// The channel is server-push only; still drain inbound frames so the
	// client's close/ping frames are processed and a dead peer is
	// detected promptly.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts ev to every currently connected client. Clients
// that fail to accept the write are dropped. Safe for concurrent use.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		if err := ws.WriteJSON(ev); err != nil {
			log.Warn("control: dropping client: %v", err)
			ws.Close()
			delete(h.clients, ws)
		}
	}
}
