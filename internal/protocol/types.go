// Package protocol is the JSON wire format between clients and the relay.
//
// Every frame is a flat JSON object with a "type" discriminator. Session
// descriptions and ICE candidates are carried as raw JSON and never
// inspected.
//
// Beyond the basic call flow the relay also sends call-ringing to the
// caller with the new call id, so a ringing call can be cancelled with
// call-end, and refuses self-calls and over-limit initiations with
// call-failed.
package protocol

type Type string

// Client → server.
const (
	TypeCallInitiate Type = "call-initiate"
	TypeCallAccept   Type = "call-accept"
	TypeCallReject   Type = "call-reject"
	TypeCallEnd      Type = "call-end"
	TypeICECandidate Type = "ice-candidate"
	TypePing         Type = "ping"
	TypeWhoAmI       Type = "whoami"
)

// Server → client. ice-candidate and whoami reuse the inbound names.
const (
	TypePresenceUpdate Type = "presence-update"
	TypeIncomingCall   Type = "incoming-call"
	TypeCallRinging    Type = "call-ringing"
	TypeCallFailed     Type = "call-failed"
	TypeCallAccepted   Type = "call-accepted"
	TypeCallRejected   Type = "call-rejected"
	TypeCallEnded      Type = "call-ended"
	TypePong           Type = "pong"
)
