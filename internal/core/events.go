package core

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Callbox/internal/domain"
)

// Outbound event types.
const (
	EventAssignedConnectionID = "assigned-connection-id"
	EventJoined               = "joined"
	EventJoinRejected         = "join-rejected"
	EventPresenceSnapshot     = "presence-snapshot"
	EventPeerLeft             = "peer-left"
	EventIncomingCall         = "incoming-call"
	EventCallBusyNotice       = "call-busy-notice"
	EventTargetBusy           = "target-busy"
	EventCallerBusy           = "caller-busy"
	EventTargetUnreachable    = "target-unreachable"
	EventCallAnswered         = "call-answered"
	EventCallRejected         = "call-rejected"
	EventCallEnded            = "call-ended"
	EventError                = "error"
	EventPong                 = "pong"
	EventWhoAmI               = "whoami"
)

// Event is anything that can be sent to a client. Type is the wire tag.
type Event interface {
	EventType() string
}

// Encode marshals ev with its type tag inlined as "type".
func Encode(ev Event) (Frame, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	tag, _ := json.Marshal(ev.EventType())
	fields["type"] = tag
	return json.Marshal(fields)
}

type AssignedConnectionID struct {
	ConnectionID ConnectionID `json:"connectionId"`
}

func (AssignedConnectionID) EventType() string { return EventAssignedConnectionID }

type Joined struct {
	User         domain.User  `json:"user"`
	ConnectionID ConnectionID `json:"connectionId"`
}

func (Joined) EventType() string { return EventJoined }

type JoinRejected struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (JoinRejected) EventType() string { return EventJoinRejected }

type PresenceSnapshot struct {
	Users []domain.PresenceEntry `json:"users"`
}

func (PresenceSnapshot) EventType() string { return EventPresenceSnapshot }

type PeerLeft struct {
	UserID       domain.UserID `json:"userId"`
	ConnectionID ConnectionID  `json:"connectionId"`
}

func (PeerLeft) EventType() string { return EventPeerLeft }

// Caller is what a callee learns about the calling user.
type Caller struct {
	UserID      domain.UserID `json:"from"`
	DisplayName string        `json:"name"`
	Avatar      string        `json:"avatar,omitempty"`
}

type IncomingCall struct {
	Caller
	SessionID domain.CallID   `json:"sessionId"`
	Signal    json.RawMessage `json:"signal"`
}

func (IncomingCall) EventType() string { return EventIncomingCall }

type CallBusyNotice struct {
	Caller
}

func (CallBusyNotice) EventType() string { return EventCallBusyNotice }

type TargetBusy struct {
	Target domain.UserID `json:"target"`
}

func (TargetBusy) EventType() string { return EventTargetBusy }

type CallerBusy struct {
	Target domain.UserID `json:"target"`
}

func (CallerBusy) EventType() string { return EventCallerBusy }

type TargetUnreachable struct {
	Target domain.UserID `json:"target"`
}

func (TargetUnreachable) EventType() string { return EventTargetUnreachable }

type CallAnswered struct {
	From      domain.UserID   `json:"from"`
	SessionID domain.CallID   `json:"sessionId"`
	Signal    json.RawMessage `json:"signal"`
}

func (CallAnswered) EventType() string { return EventCallAnswered }

type CallRejected struct {
	From      domain.UserID `json:"from"`
	Name      string        `json:"name"`
	SessionID domain.CallID `json:"sessionId"`
}

func (CallRejected) EventType() string { return EventCallRejected }

// End reasons carried by CallEnded.
const (
	EndReasonHangup     = "hangup"
	EndReasonDisconnect = "disconnect"
)

type CallEnded struct {
	From      domain.UserID `json:"from"`
	Name      string        `json:"name"`
	SessionID domain.CallID `json:"sessionId"`
	Reason    string        `json:"reason"`
}

func (CallEnded) EventType() string { return EventCallEnded }

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return EventError }

type Pong struct{}

func (Pong) EventType() string { return EventPong }

type WhoAmI struct {
	ConnectionID ConnectionID   `json:"connectionId"`
	User         *domain.User   `json:"user,omitempty"`
	Session      *domain.CallID `json:"sessionId,omitempty"`
}

func (WhoAmI) EventType() string { return EventWhoAmI }

// Error codes sent to clients.
const (
	CodeInvalidJoin       = "invalid_join"
	CodeIdentityMismatch  = "identity_mismatch"
	CodeTargetUnreachable = "target_unreachable"
	CodeTargetBusy        = "target_busy"
	CodeCallerBusy        = "caller_busy"
	CodeSelfCall          = "self_call"
	CodeRateLimited       = "rate_limited"
	CodeNotJoined         = "not_joined"
	CodeBadPayload        = "bad_payload"
	CodeInternal          = "internal"
)

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrIdentityMismatch):
		return CodeIdentityMismatch
	case errors.Is(err, domain.ErrInvalidJoin):
		return CodeInvalidJoin
	case errors.Is(err, domain.ErrTargetUnreachable):
		return CodeTargetUnreachable
	case errors.Is(err, domain.ErrTargetBusy):
		return CodeTargetBusy
	case errors.Is(err, domain.ErrCallerBusy):
		return CodeCallerBusy
	case errors.Is(err, domain.ErrSelfCall):
		return CodeSelfCall
	case errors.Is(err, domain.ErrNotJoined):
		return CodeNotJoined
	default:
		return CodeInternal
	}
}
