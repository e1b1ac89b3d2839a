package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/stretchr/testify/require"
)

// fakeConn records every frame the relay hands to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) messages(t *testing.T) []protocol.Outbound {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Outbound, 0, len(c.frames))
	for _, f := range c.frames {
		m, err := protocol.DecodeOutbound(f)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// ofType keeps only the messages of type T, in arrival order.
func ofType[T protocol.Outbound](t *testing.T, c *fakeConn) []T {
	t.Helper()
	var out []T
	for _, m := range c.messages(t) {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// signaling drops presence noise so assertions only see call traffic.
func signaling(t *testing.T, c *fakeConn) []protocol.Outbound {
	t.Helper()
	var out []protocol.Outbound
	for _, m := range c.messages(t) {
		if _, ok := m.(protocol.PresenceUpdate); ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

var (
	offer     = json.RawMessage(`{"type":"offer","sdp":"v=0 offer"}`)
	answer    = json.RawMessage(`{"type":"answer","sdp":"v=0 answer"}`)
	candidate = json.RawMessage(`{"candidate":"candidate:0 1 UDP 1 192.0.2.1 3478 typ host","sdpMid":"0","sdpMLineIndex":0}`)
)

type harness struct {
	t     *testing.T
	ctx   context.Context
	relay *app.Relay
}

func newHarness(t *testing.T, opts ...app.Option) *harness {
	return &harness{t: t, ctx: context.Background(), relay: app.NewRelay(opts...)}
}

func (h *harness) connect(id domain.Identity, sid string) *fakeConn {
	c := newConn(sid)
	h.relay.Connect(h.ctx, id, c)
	return c
}

func (h *harness) dispatch(from *fakeConn, msg protocol.Inbound) {
	h.relay.Dispatch(h.ctx, from, msg)
}

// call has caller ring target and returns the new call id.
func (h *harness) call(caller *fakeConn, target domain.Identity) domain.CallID {
	h.t.Helper()
	h.dispatch(caller, protocol.CallInitiate{
		TargetIdentity: target,
		CallerInfo:     domain.CallerInfo{DisplayName: "caller"},
		Offer:          offer,
	})
	ringing := ofType[protocol.CallRinging](h.t, caller)
	require.NotEmpty(h.t, ringing, "caller got no call-ringing")
	return ringing[len(ringing)-1].CallID
}
