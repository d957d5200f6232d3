package core

import "errors"

var (
	ErrBackpressure     = errors.New("backpressure")
	ErrConnectionClosed = errors.New("connection closed")
)

// Frame is a raw encoded message.
type Frame []byte

// ConnectionID identifies one live transport connection.
type ConnectionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must never block: a full buffer yields ErrBackpressure.
	TrySend(Frame) error
	Close()
}
