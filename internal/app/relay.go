package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Relay owns the presence directory and the call table and is the only
// writer of either. Every handler and every disconnect cleanup runs under
// mu, so two messages touching the same call are applied one after the
// other and the loser finds the call already gone.
type Relay struct {
	Presence *core.Presence
	Calls    *core.CallTable
	Registry *Registry

	mu        sync.Mutex
	limiter   *InitiateLimiter
	policy    Policy
	metrics   *telemetry.Metrics
	newCallID func(caller, callee domain.Identity) domain.CallID
}

type Option func(*Relay)

func WithLimiter(l *InitiateLimiter) Option { return func(r *Relay) { r.limiter = l } }

func WithPolicy(p Policy) Option { return func(r *Relay) { r.policy = p } }

func WithMetrics(m *telemetry.Metrics) Option { return func(r *Relay) { r.metrics = m } }

func WithCallIDs(gen func(caller, callee domain.Identity) domain.CallID) Option {
	return func(r *Relay) { r.newCallID = gen }
}

func NewRelay(opts ...Option) *Relay {
	r := &Relay{
		Presence:  core.NewPresence(),
		Calls:     core.NewCallTable(),
		Registry:  NewRegistry(),
		policy:    DropPolicy{},
		newCallID: domain.NewCallID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// send is fire-and-forget: a failed write is logged and never retried.
// Caller holds r.mu.
func (r *Relay) send(ctx context.Context, conn core.SignalConnection, m protocol.Outbound) {
	frame, err := protocol.Encode(m)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode outbound")
		return
	}
	r.sendFrame(ctx, conn, m.MessageType(), frame)
}

func (r *Relay) sendFrame(ctx context.Context, conn core.SignalConnection, typ protocol.Type, frame core.Frame) {
	err := conn.TrySend(frame)
	if err == nil {
		return
	}
	r.metrics.MessageDropped(ctx, string(typ))
	log.Debug().Err(err).Str("module", "app.relay").Str("sid", conn.ID()).Str("type", string(typ)).Msg("forward dropped")

	if errors.Is(err, core.ErrBackpressure) && r.policy.OnBackPressure(conn) == KickConnection {
		log.Warn().Str("module", "app.relay").Str("sid", conn.ID()).Msg("kicking slow connection")
		conn.Close()
	}
}

// Shutdown closes every live connection. Their pumps exit and each
// runs the normal disconnect path.
func (r *Relay) Shutdown() {
	for _, c := range r.Registry.Connections() {
		c.Close()
	}
	log.Info().Str("module", "app.relay").Msg("relay stopped")
}
