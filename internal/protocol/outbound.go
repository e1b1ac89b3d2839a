package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/callrelay/internal/domain"
)

// Outbound is the closed set of messages the relay sends.
type Outbound interface {
	MessageType() Type
	outbound()
}

// PresenceUpdate is the only message pushed to every connection.
type PresenceUpdate struct {
	OnlineIdentities []domain.Identity `json:"onlineIdentities"`
}

type IncomingCall struct {
	CallID     domain.CallID     `json:"callId"`
	CallerInfo domain.CallerInfo `json:"callerInfo"`
	Offer      json.RawMessage   `json:"offer"`
}

// CallRinging tells the caller which id its pending call got, so it can
// cancel before the callee answers.
type CallRinging struct {
	CallID         domain.CallID   `json:"callId"`
	TargetIdentity domain.Identity `json:"targetIdentity"`
}

// CallFailed refuses a call-initiate; no session exists afterwards.
// Reason is one of "offline", "rate-limited" or "self-call" (the relay does
// not ring a connection back to its own identity).
type CallFailed struct {
	Reason         domain.FailReason `json:"reason"`
	Message        string            `json:"message,omitempty"`
	TargetIdentity domain.Identity   `json:"targetIdentity,omitempty"`
}

type CallAccepted struct {
	CallID domain.CallID   `json:"callId"`
	Answer json.RawMessage `json:"answer"`
}

type CallRejected struct {
	CallID domain.CallID `json:"callId"`
}

type CallEnded struct {
	CallID domain.CallID    `json:"callId"`
	Reason domain.EndReason `json:"reason,omitempty"`
}

type ICECandidateRelay struct {
	CallID    domain.CallID   `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
}

type Pong struct{}

type WhoAmIReply struct {
	Identity         domain.Identity   `json:"identity"`
	OnlineIdentities []domain.Identity `json:"onlineIdentities"`
}

func (PresenceUpdate) MessageType() Type    { return TypePresenceUpdate }
func (IncomingCall) MessageType() Type      { return TypeIncomingCall }
func (CallRinging) MessageType() Type       { return TypeCallRinging }
func (CallFailed) MessageType() Type        { return TypeCallFailed }
func (CallAccepted) MessageType() Type      { return TypeCallAccepted }
func (CallRejected) MessageType() Type      { return TypeCallRejected }
func (CallEnded) MessageType() Type         { return TypeCallEnded }
func (ICECandidateRelay) MessageType() Type { return TypeICECandidate }
func (Pong) MessageType() Type              { return TypePong }
func (WhoAmIReply) MessageType() Type       { return TypeWhoAmI }

func (PresenceUpdate) outbound()    {}
func (IncomingCall) outbound()      {}
func (CallRinging) outbound()       {}
func (CallFailed) outbound()        {}
func (CallAccepted) outbound()      {}
func (CallRejected) outbound()      {}
func (CallEnded) outbound()         {}
func (ICECandidateRelay) outbound() {}
func (Pong) outbound()              {}
func (WhoAmIReply) outbound()       {}

// Encode marshals m and stamps its type as the first field.
func Encode(m Outbound) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	typ, err := json.Marshal(m.MessageType())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}

	out := make([]byte, 0, len(body)+len(typ)+9)
	out = append(out, `{"type":`...)
	out = append(out, typ...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// DecodeOutbound parses one server frame. Used by Go clients and tests.
func DecodeOutbound(data []byte) (Outbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypePresenceUpdate:
		return unmarshalAs[PresenceUpdate](data)
	case TypeIncomingCall:
		return unmarshalAs[IncomingCall](data)
	case TypeCallRinging:
		return unmarshalAs[CallRinging](data)
	case TypeCallFailed:
		return unmarshalAs[CallFailed](data)
	case TypeCallAccepted:
		return unmarshalAs[CallAccepted](data)
	case TypeCallRejected:
		return unmarshalAs[CallRejected](data)
	case TypeCallEnded:
		return unmarshalAs[CallEnded](data)
	case TypeICECandidate:
		return unmarshalAs[ICECandidateRelay](data)
	case TypePong:
		return Pong{}, nil
	case TypeWhoAmI:
		return unmarshalAs[WhoAmIReply](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func unmarshalAs[T Outbound](data []byte) (Outbound, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}
