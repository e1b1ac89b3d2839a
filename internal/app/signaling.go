package app

import (
	"context"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const offlineMessage = "User is not online"

// Dispatch applies one inbound message received on from.
// Messages about unknown calls, or from the wrong participant, are
// dropped without a reply: near call end they are expected races.
func (r *Relay) Dispatch(ctx context.Context, from core.SignalConnection, msg protocol.Inbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.Registry.IdentityOf(from)
	if !ok {
		r.drop(ctx, from, msg.MessageType(), "", "connection not bound")
		return
	}

	switch m := msg.(type) {
	case protocol.CallInitiate:
		r.handleInitiate(ctx, from, id, m)
	case protocol.CallAccept:
		r.handleAccept(ctx, from, m)
	case protocol.CallReject:
		r.handleReject(ctx, from, m)
	case protocol.CallEnd:
		r.handleEnd(ctx, from, m)
	case protocol.ICECandidate:
		r.handleCandidate(ctx, from, m)
	case protocol.Ping:
		r.send(ctx, from, protocol.Pong{})
	case protocol.WhoAmI:
		r.send(ctx, from, protocol.WhoAmIReply{Identity: id, OnlineIdentities: r.Presence.Snapshot()})
	default:
		r.drop(ctx, from, msg.MessageType(), "", "unhandled message")
	}
}

func (r *Relay) handleInitiate(ctx context.Context, from core.SignalConnection, caller domain.Identity, m protocol.CallInitiate) {
	if !r.limiter.Allow(caller) {
		r.metrics.CallFailed(ctx, string(domain.FailRateLimited))
		r.send(ctx, from, protocol.CallFailed{Reason: domain.FailRateLimited, TargetIdentity: m.TargetIdentity})
		return
	}

	target, ok := r.Presence.Resolve(m.TargetIdentity)
	if !ok {
		r.metrics.CallFailed(ctx, string(domain.FailOffline))
		log.Info().Str("module", "app.signaling").Str("identity", caller.String()).Str("target", m.TargetIdentity.String()).Msg("call target offline")
		r.send(ctx, from, protocol.CallFailed{Reason: domain.FailOffline, Message: offlineMessage, TargetIdentity: m.TargetIdentity})
		return
	}
	if target == from {
		r.metrics.CallFailed(ctx, string(domain.FailSelfCall))
		r.send(ctx, from, protocol.CallFailed{Reason: domain.FailSelfCall, TargetIdentity: m.TargetIdentity})
		return
	}

	s, err := r.Calls.Create(r.newCallID(caller, m.TargetIdentity), from, target)
	if err != nil {
		log.Error().Err(err).Str("module", "app.signaling").Str("identity", caller.String()).Msg("create call")
		return
	}
	r.metrics.CallInitiated(ctx)
	log.Info().Str("module", "app.signaling").Str("call_id", s.ID.String()).Str("identity", caller.String()).Str("target", m.TargetIdentity.String()).Msg("ringing")

	info := m.CallerInfo
	info.Identity = caller
	r.send(ctx, target, protocol.IncomingCall{CallID: s.ID, CallerInfo: info, Offer: m.Offer})
	r.send(ctx, from, protocol.CallRinging{CallID: s.ID, TargetIdentity: m.TargetIdentity})
}

func (r *Relay) handleAccept(ctx context.Context, from core.SignalConnection, m protocol.CallAccept) {
	s, ok := r.Calls.Get(m.CallID)
	if !ok || s.Callee != from {
		r.drop(ctx, from, m.MessageType(), m.CallID, "not the callee of a live call")
		return
	}
	if err := r.Calls.SetConnected(m.CallID); err != nil {
		r.drop(ctx, from, m.MessageType(), m.CallID, err.Error())
		return
	}
	r.metrics.CallAccepted(ctx)
	log.Info().Str("module", "app.signaling").Str("call_id", s.ID.String()).Msg("connected")

	r.send(ctx, s.Caller, protocol.CallAccepted{CallID: s.ID, Answer: m.Answer})
}

func (r *Relay) handleReject(ctx context.Context, from core.SignalConnection, m protocol.CallReject) {
	s, ok := r.participantCall(m.CallID, from)
	if !ok {
		r.drop(ctx, from, m.MessageType(), m.CallID, "no call for sender")
		return
	}
	r.Calls.Remove(s.ID)
	r.metrics.CallEnded(ctx, telemetry.CauseRejected)
	log.Info().Str("module", "app.signaling").Str("call_id", s.ID.String()).Msg("rejected")

	r.send(ctx, s.Caller, protocol.CallRejected{CallID: s.ID})
}

func (r *Relay) handleEnd(ctx context.Context, from core.SignalConnection, m protocol.CallEnd) {
	s, ok := r.participantCall(m.CallID, from)
	if !ok {
		r.drop(ctx, from, m.MessageType(), m.CallID, "no call for sender")
		return
	}
	r.Calls.Remove(s.ID)
	r.metrics.CallEnded(ctx, telemetry.CauseEnded)
	log.Info().Str("module", "app.signaling").Str("call_id", s.ID.String()).Msg("ended")

	r.send(ctx, s.Caller, protocol.CallEnded{CallID: s.ID})
	r.send(ctx, s.Callee, protocol.CallEnded{CallID: s.ID})
}

func (r *Relay) handleCandidate(ctx context.Context, from core.SignalConnection, m protocol.ICECandidate) {
	s, ok := r.participantCall(m.CallID, from)
	if !ok {
		r.drop(ctx, from, m.MessageType(), m.CallID, "no call for sender")
		return
	}
	peer, _ := s.Peer(from)
	r.send(ctx, peer, protocol.ICECandidateRelay{CallID: s.ID, Candidate: m.Candidate})
}

// participantCall finds a live call that from takes part in.
func (r *Relay) participantCall(id domain.CallID, from core.SignalConnection) (core.CallSession, bool) {
	s, ok := r.Calls.Get(id)
	if !ok || !s.Involves(from) {
		return core.CallSession{}, false
	}
	return s, true
}

func (r *Relay) drop(ctx context.Context, from core.SignalConnection, typ protocol.Type, id domain.CallID, why string) {
	r.metrics.MessageDropped(ctx, string(typ))
	log.Debug().Str("module", "app.signaling").Str("sid", from.ID()).Str("type", string(typ)).Str("call_id", id.String()).Str("why", why).Msg("message dropped")
}
