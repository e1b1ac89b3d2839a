package core

import "errors"

//go:generate mockgen -source=signal_iface.go -destination=mocks/mock_signal.go -package=mocks

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection is the handle of one live client transport.
// Owned by the adapter; the adapter must Close() it.
// Implementations must be comparable (pointer types): the relay uses handle
// equality to tell caller from callee.
type SignalConnection interface {
	ID() string
	TrySend(Frame) error
	Close()
}
