package domain

import (
	"github.com/google/uuid"
)

type CallID string

func (id CallID) String() string { return string(id) }

// NewCallID derives an id from both parties plus a random suffix, so two
// calls between the same pair started within one clock tick never collide.
func NewCallID(caller, callee Identity) CallID {
	return CallID(string(caller) + "-" + string(callee) + "-" + uuid.NewString())
}

type CallStatus string

const (
	CallRinging   CallStatus = "ringing"
	CallConnected CallStatus = "connected"
)

// EndReason travels in call-ended when the call did not end by request.
type EndReason string

const (
	ReasonPeerDisconnected EndReason = "peer disconnected"
)

// FailReason travels in call-failed.
type FailReason string

const (
	FailOffline     FailReason = "offline"
	FailRateLimited FailReason = "rate-limited"
	FailSelfCall    FailReason = "self-call"
)
