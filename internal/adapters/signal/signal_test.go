package signal

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ReadLimit:  4096,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
	}
}

func newServer(t *testing.T) (*httptest.Server, *app.Relay) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	relay := app.NewRelay()
	ctl := NewSignalWSController(relay, testConfig(), nil)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(c.Request.Context(), c, domain.Identity(c.Query("userId")))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, relay
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server, id string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=" + id
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// next returns the next message that is not a presence update.
func (c *client) next() protocol.Outbound {
	c.t.Helper()
	for {
		require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err)
		m, err := protocol.DecodeOutbound(data)
		require.NoError(c.t, err)
		if _, ok := m.(protocol.PresenceUpdate); !ok {
			return m
		}
	}
}

// waitPresence reads until a presence update listing exactly want.
func (c *client) waitPresence(want ...domain.Identity) {
	c.t.Helper()
	for {
		require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err)
		m, err := protocol.DecodeOutbound(data)
		require.NoError(c.t, err)
		if p, ok := m.(protocol.PresenceUpdate); ok && assert.ObjectsAreEqual(want, p.OnlineIdentities) {
			return
		}
	}
}

func TestSignal_CallOverWebsocket(t *testing.T) {
	srv, relay := newServer(t)
	alice := dial(t, srv, "alice")
	alice.waitPresence("alice")
	bob := dial(t, srv, "bob")
	bob.waitPresence("alice", "bob")
	alice.waitPresence("alice", "bob")

	alice.send(`{"type":"call-initiate","targetIdentity":"bob","callerInfo":{"displayName":"Alice"},"offer":{"type":"offer","sdp":"x"}}`)

	incoming, ok := bob.next().(protocol.IncomingCall)
	require.True(t, ok)
	assert.Equal(t, domain.Identity("alice"), incoming.CallerInfo.Identity)
	assert.JSONEq(t, `{"type":"offer","sdp":"x"}`, string(incoming.Offer))

	ringing, ok := alice.next().(protocol.CallRinging)
	require.True(t, ok)
	assert.Equal(t, incoming.CallID, ringing.CallID)

	accept, err := json.Marshal(map[string]any{
		"type": "call-accept", "callId": incoming.CallID, "answer": map[string]string{"type": "answer", "sdp": "y"},
	})
	require.NoError(t, err)
	bob.send(string(accept))

	accepted, ok := alice.next().(protocol.CallAccepted)
	require.True(t, ok)
	assert.Equal(t, incoming.CallID, accepted.CallID)

	// dropping alice's socket ends the call for bob
	require.NoError(t, alice.ws.Close())
	assert.Equal(t, protocol.CallEnded{CallID: incoming.CallID, Reason: domain.ReasonPeerDisconnected}, bob.next())
	bob.waitPresence("bob")
	assert.Equal(t, 0, relay.Calls.Len())
}

func TestSignal_MalformedFramesGetNoReply(t *testing.T) {
	srv, _ := newServer(t)
	alice := dial(t, srv, "alice")

	alice.send(`not json`)
	alice.send(`{"type":"teleport"}`)
	alice.send(`{"type":"call-initiate","targetIdentity":""}`)
	alice.send(`{"type":"ping"}`)

	assert.Equal(t, protocol.Pong{}, alice.next())
}

func TestSignal_OversizedFrameClosesConnection(t *testing.T) {
	srv, relay := newServer(t)
	alice := dial(t, srv, "alice")
	alice.waitPresence("alice")

	alice.send(`{"type":"ping","pad":"` + strings.Repeat("x", 8192) + `"}`)

	require.Eventually(t, func() bool {
		_, ok := relay.Presence.Resolve("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSSignalConn_TrySendAfterClose(t *testing.T) {
	srv, relay := newServer(t)
	dial(t, srv, "alice")

	var conn core.SignalConnection
	require.Eventually(t, func() bool {
		c, ok := relay.Presence.Resolve("alice")
		conn = c
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	conn.Close()
	assert.ErrorIs(t, conn.TrySend(core.Frame(`{}`)), core.ErrConnClosed)
}

func TestWSSignalConn_Backpressure(t *testing.T) {
	c := &wsSignalConn{id: "x", send: make(chan core.Frame, 1)}

	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)
}

func TestHandleSignal_ShutdownDisconnects(t *testing.T) {
	srv, relay := newServer(t)
	alice := dial(t, srv, "alice")
	alice.waitPresence("alice")

	relay.Shutdown()

	require.NoError(t, alice.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := alice.ws.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return relay.Registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
