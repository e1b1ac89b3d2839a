package core

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/callrelay/internal/domain"
)

var (
	ErrCallExists     = errors.New("call already exists")
	ErrCallNotFound   = errors.New("call not found")
	ErrCallNotRinging = errors.New("call is not ringing")
)

// CallSession is one in-flight call. Caller and Callee are the handles seen
// when the call was created; they are never re-resolved through presence.
type CallSession struct {
	ID        domain.CallID
	Caller    SignalConnection
	Callee    SignalConnection
	Status    domain.CallStatus
	CreatedAt time.Time
}

// Peer returns the participant on the other side of conn.
func (s CallSession) Peer(conn SignalConnection) (SignalConnection, bool) {
	switch conn {
	case s.Caller:
		return s.Callee, true
	case s.Callee:
		return s.Caller, true
	}
	return nil, false
}

func (s CallSession) Involves(conn SignalConnection) bool {
	return s.Caller == conn || s.Callee == conn
}

// CallInfo is a read-only view for APIs (no transport fields).
type CallInfo struct {
	ID        domain.CallID     `json:"callId"`
	Status    domain.CallStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// CallTable is a threadsafe in-memory call table.
// It never closes adapter-owned resources.
type CallTable struct {
	mu    sync.RWMutex
	calls map[domain.CallID]*CallSession
	now   func() time.Time
}

func NewCallTable() *CallTable {
	return &CallTable{
		calls: make(map[domain.CallID]*CallSession),
		now:   time.Now,
	}
}

func (t *CallTable) Create(id domain.CallID, caller, callee SignalConnection) (CallSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[id]; ok {
		return CallSession{}, ErrCallExists
	}
	s := &CallSession{
		ID:        id,
		Caller:    caller,
		Callee:    callee,
		Status:    domain.CallRinging,
		CreatedAt: t.now(),
	}
	t.calls[id] = s
	return *s, nil
}

func (t *CallTable) Get(id domain.CallID) (CallSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.calls[id]
	if !ok {
		return CallSession{}, false
	}
	return *s, true
}

func (t *CallTable) SetConnected(id domain.CallID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.calls[id]
	if !ok {
		return ErrCallNotFound
	}
	if s.Status != domain.CallRinging {
		return ErrCallNotRinging
	}
	s.Status = domain.CallConnected
	return nil
}

func (t *CallTable) Remove(id domain.CallID) (CallSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.calls[id]
	if !ok {
		return CallSession{}, false
	}
	delete(t.calls, id)
	return *s, true
}

// Involving lists every session where conn is caller or callee.
func (t *CallTable) Involving(conn SignalConnection) []CallSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []CallSession
	for _, s := range t.calls {
		if s.Involves(conn) {
			out = append(out, *s)
		}
	}
	return out
}

func (t *CallTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.calls)
}

func (t *CallTable) Snapshot() []CallInfo {
	t.mu.RLock()
	out := make([]CallInfo, 0, len(t.calls))
	for _, s := range t.calls {
		out = append(out, CallInfo{ID: s.ID, Status: s.Status, CreatedAt: s.CreatedAt})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
