package core

import (
	"slices"
	"sync"

	"github.com/dkeye/callrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence maps an identity to its current live connection.
// One identity holds at most one handle; the last connect wins.
type Presence struct {
	mu     sync.RWMutex
	byUser map[domain.Identity]SignalConnection
}

func NewPresence() *Presence {
	return &Presence{
		byUser: make(map[domain.Identity]SignalConnection),
	}
}

func (p *Presence) SetOnline(id domain.Identity, conn SignalConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.byUser[id]; ok && prev != conn {
		log.Info().Str("module", "core.presence").Str("identity", id.String()).Str("old_sid", prev.ID()).Str("sid", conn.ID()).Msg("handle replaced")
	}
	p.byUser[id] = conn
}

func (p *Presence) SetOffline(id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byUser, id)
}

// Release removes the entry only while it still points at conn, so a late
// disconnect of a replaced handle keeps the newer one online.
func (p *Presence) Release(id domain.Identity, conn SignalConnection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.byUser[id]; !ok || cur != conn {
		return false
	}
	delete(p.byUser, id)
	return true
}

func (p *Presence) Resolve(id domain.Identity) (SignalConnection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	conn, ok := p.byUser[id]
	return conn, ok
}

// Snapshot returns the online identities in lexical order.
func (p *Presence) Snapshot() []domain.Identity {
	p.mu.RLock()
	out := make([]domain.Identity, 0, len(p.byUser))
	for id := range p.byUser {
		out = append(out, id)
	}
	p.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
