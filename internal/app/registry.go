package app

import (
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type connEntry struct {
	Identity domain.Identity
	OpenedAt time.Time
}

// Registry is the set of every live signaling connection, including ones
// that presence no longer points at because their identity reconnected.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.SignalConnection]connEntry
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.SignalConnection]connEntry),
	}
}

func (r *Registry) Bind(conn core.SignalConnection, id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = connEntry{Identity: id, OpenedAt: time.Now()}
	log.Info().Str("module", "app.registry").Str("sid", conn.ID()).Str("identity", id.String()).Msg("bound connection")
}

func (r *Registry) Unbind(conn core.SignalConnection) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[conn]
	if !ok {
		return "", false
	}
	delete(r.conns, conn)
	log.Info().Str("module", "app.registry").Str("sid", conn.ID()).Str("identity", e.Identity.String()).Dur("age", time.Since(e.OpenedAt)).Msg("unbind connection")
	return e.Identity, true
}

func (r *Registry) IdentityOf(conn core.SignalConnection) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[conn]
	return e.Identity, ok
}

func (r *Registry) Connections() []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
