package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/callrelay/internal/domain"
	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Inbound is the closed set of messages a client may send.
type Inbound interface {
	MessageType() Type
	inbound()
}

type CallInitiate struct {
	TargetIdentity domain.Identity   `json:"targetIdentity" validate:"required,max=128"`
	CallerInfo     domain.CallerInfo `json:"callerInfo"`
	Offer          json.RawMessage   `json:"offer" validate:"required"`
}

type CallAccept struct {
	CallID domain.CallID   `json:"callId" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"required"`
}

type CallReject struct {
	CallID domain.CallID `json:"callId" validate:"required"`
}

type CallEnd struct {
	CallID domain.CallID `json:"callId" validate:"required"`
}

type ICECandidate struct {
	CallID    domain.CallID   `json:"callId" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

type Ping struct{}

type WhoAmI struct{}

func (CallInitiate) MessageType() Type { return TypeCallInitiate }
func (CallAccept) MessageType() Type   { return TypeCallAccept }
func (CallReject) MessageType() Type   { return TypeCallReject }
func (CallEnd) MessageType() Type      { return TypeCallEnd }
func (ICECandidate) MessageType() Type { return TypeICECandidate }
func (Ping) MessageType() Type         { return TypePing }
func (WhoAmI) MessageType() Type       { return TypeWhoAmI }

func (CallInitiate) inbound() {}
func (CallAccept) inbound()   {}
func (CallReject) inbound()   {}
func (CallEnd) inbound()      {}
func (ICECandidate) inbound() {}
func (Ping) inbound()         {}
func (WhoAmI) inbound()       {}

type envelope struct {
	Type Type `json:"type"`
}

// Decode parses one client frame.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeCallInitiate:
		return decodeAs[CallInitiate](data)
	case TypeCallAccept:
		return decodeAs[CallAccept](data)
	case TypeCallReject:
		return decodeAs[CallReject](data)
	case TypeCallEnd:
		return decodeAs[CallEnd](data)
	case TypeICECandidate:
		return decodeAs[ICECandidate](data)
	case TypePing:
		return Ping{}, nil
	case TypeWhoAmI:
		return WhoAmI{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, msg.MessageType(), err)
	}
	return msg, nil
}
