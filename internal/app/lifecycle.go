package app

import (
	"context"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Connect binds a freshly opened connection to its identity and tells
// everybody who is online now.
func (r *Relay) Connect(ctx context.Context, id domain.Identity, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Registry.Bind(conn, id)
	r.Presence.SetOnline(id, conn)
	r.metrics.ConnectionOpened(ctx)
	log.Info().Str("module", "app.lifecycle").Str("sid", conn.ID()).Str("identity", id.String()).Msg("online")

	r.broadcastPresence(ctx)
}

// Disconnect tears down every call that referenced conn, then takes the
// identity offline. Both happen in one critical section: no presence
// snapshot can list an identity whose calls are still being torn down.
func (r *Relay) Disconnect(ctx context.Context, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.Registry.IdentityOf(conn)
	if !ok {
		return
	}

	for _, s := range r.Calls.Involving(conn) {
		if _, ok := r.Calls.Remove(s.ID); !ok {
			continue
		}
		r.metrics.CallEnded(ctx, telemetry.CauseDisconnected)
		log.Info().Str("module", "app.lifecycle").Str("call_id", s.ID.String()).Str("sid", conn.ID()).Msg("call ended by disconnect")

		peer, _ := s.Peer(conn)
		r.send(ctx, peer, protocol.CallEnded{CallID: s.ID, Reason: domain.ReasonPeerDisconnected})
	}

	r.Registry.Unbind(conn)
	if r.Presence.Release(id, conn) {
		r.limiter.Forget(id)
	}
	r.metrics.ConnectionClosed(ctx)
	log.Info().Str("module", "app.lifecycle").Str("sid", conn.ID()).Str("identity", id.String()).Msg("offline")

	r.broadcastPresence(ctx)
}

// broadcastPresence encodes the snapshot once and pushes it to every live
// connection. Caller holds r.mu.
func (r *Relay) broadcastPresence(ctx context.Context) {
	m := protocol.PresenceUpdate{OnlineIdentities: r.Presence.Snapshot()}
	frame, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "app.lifecycle").Msg("encode presence")
		return
	}
	conns := r.Registry.Connections()
	for _, c := range conns {
		r.sendFrame(ctx, c, m.MessageType(), frame)
	}
	log.Debug().Str("module", "app.lifecycle").Int("online", len(m.OnlineIdentities)).Int("sent_to", len(conns)).Msg("presence broadcast")
}
