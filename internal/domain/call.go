package domain

import (
	"errors"
	"time"
)

var (
	ErrTargetUnreachable = errors.New("target unreachable")
	ErrTargetBusy        = errors.New("target busy")
	ErrCallerBusy        = errors.New("caller already in a call")
	ErrSelfCall          = errors.New("cannot call yourself")
	// ErrStaleSession marks answer/reject referencing a session that no longer
	// exists, typically after a disconnect race. Callers treat it as a no-op.
	ErrStaleSession = errors.New("stale session")
	ErrNotJoined    = errors.New("connection has not joined")
)

// CallState of a non-terminal session. A missing session is NONE, an ended
// session is removed and never stored.
type CallState string

const (
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
)

type CallID string

// PairKey is the unordered pair of identities a session is keyed by.
type PairKey struct {
	lo, hi UserID
}

func NewPairKey(a, b UserID) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{lo: a, hi: b}
}

func (k PairKey) String() string { return string(k.lo) + "|" + string(k.hi) }

// CallSession is a call attempt or active call between exactly two identities.
type CallSession struct {
	ID         CallID     `json:"sessionId"`
	Initiator  UserID     `json:"initiator"`
	Responder  UserID     `json:"responder"`
	State      CallState  `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

func (s *CallSession) Key() PairKey { return NewPairKey(s.Initiator, s.Responder) }

// Counterpart returns the other participant, or "" if id is not in the session.
func (s *CallSession) Counterpart(id UserID) UserID {
	switch id {
	case s.Initiator:
		return s.Responder
	case s.Responder:
		return s.Initiator
	default:
		return ""
	}
}
