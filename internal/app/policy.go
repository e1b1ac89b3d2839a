package app

import "github.com/dkeye/callrelay/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickConnection
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(conn core.SignalConnection) BackpressureAction
}

// DropPolicy loses the frame and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return DropFrame }

// KickPolicy closes a connection that cannot keep up; its disconnect then
// tears down its calls like any other transport failure.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.SignalConnection) BackpressureAction { return KickConnection }

// PolicyFor maps the config name to a policy. Unknown names drop.
func PolicyFor(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
