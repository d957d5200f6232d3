package app

import "github.com/dkeye/Callbox/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	DisconnectSlow
)

func (a BackpressureAction) String() string {
	if a == DisconnectSlow {
		return "disconnect_slow"
	}
	return "drop_frame"
}

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(conn core.SignalConnection, eventType string) BackpressureAction
}

// SimplePolicy disconnects slow consumers. The connection's read pump then
// runs the regular transport-close path, so the client can rejoin and resync
// from a fresh presence snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SignalConnection, string) BackpressureAction {
	return DisconnectSlow
}

// LenientPolicy drops the frame and keeps the connection.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.SignalConnection, string) BackpressureAction {
	return DropFrame
}

// PolicyByName resolves a configured policy name; unknown names fall back to
// SimplePolicy.
func PolicyByName(name string) Policy {
	switch name {
	case "drop":
		return LenientPolicy{}
	default:
		return SimplePolicy{}
	}
}
