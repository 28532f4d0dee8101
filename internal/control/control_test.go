package control

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give ServeHTTP time to register the client before publishing.
	time.Sleep(10 * time.Millisecond)

	hub.Publish(Event{Type: EventKeyframeRequested, SSRC: 42, KeyframeRequested: true})

	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, EventKeyframeRequested, got.Type)
	require.EqualValues(t, 42, got.SSRC)
	require.True(t, got.KeyframeRequested)
}
