package orch

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
)

// Orchestrator maps inbound signaling events onto the registry, presence
// tracker and call manager, and answers the requesting connection.
type Orchestrator struct {
	Registry *app.Registry
	Presence *app.PresenceTracker
	Calls    *app.CallManager
	Sender   *app.Sender
}

// New wires the core components around one registry.
func New(policy app.Policy, sinks ...app.PresenceSink) *Orchestrator {
	sender := app.NewSender(policy)
	presence := app.NewPresenceTracker(app.FullSnapshotBroadcaster{Sender: sender}, sinks...)
	reg := app.NewRegistry(presence)
	relay := app.NewSignalRelay(reg, sender)
	return &Orchestrator{
		Registry: reg,
		Presence: presence,
		Calls:    app.NewCallManager(reg, relay),
		Sender:   sender,
	}
}

// Connect registers a fresh transport connection. The registry greets it with
// its id and who is currently online before any later presence change.
func (o *Orchestrator) Connect(id core.ConnectionID, conn core.SignalConnection) {
	o.Registry.Attach(id, conn)
}

// OnDisconnect runs when the transport of id is gone.
func (o *Orchestrator) OnDisconnect(id core.ConnectionID) {
	o.Calls.Release(id)
}

// Join binds the connection to an identity. verified is the identity the
// identity provider vouched for; empty when the server runs without auth.
func (o *Orchestrator) Join(id core.ConnectionID, userID domain.UserID, displayName, avatar string, verified domain.UserID) error {
	err := o.join(id, userID, displayName, avatar, verified)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Str("user", string(userID)).Msg("join rejected")
		o.reply(id, core.JoinRejected{Code: core.ErrorCode(err), Reason: err.Error()})
	}
	return err
}

func (o *Orchestrator) join(id core.ConnectionID, userID domain.UserID, displayName, avatar string, verified domain.UserID) error {
	if verified != "" && userID != verified {
		return domain.MismatchedIdentity(userID, verified)
	}
	user, err := domain.NewUser(userID, displayName, avatar)
	if err != nil {
		return err
	}
	if err := o.Registry.Bind(id, user); err != nil {
		return err
	}
	o.reply(id, core.Joined{User: *user, ConnectionID: id})
	return nil
}

// RequestCall starts a call from the connection's identity to target.
func (o *Orchestrator) RequestCall(id core.ConnectionID, target domain.UserID, signal json.RawMessage, avatar string) error {
	user, ok := o.requireUser(id)
	if !ok {
		return domain.ErrNotJoined
	}
	if avatar == "" {
		avatar = user.Avatar
	}
	caller := core.Caller{UserID: user.ID, DisplayName: user.DisplayName, Avatar: avatar}

	_, err := o.Calls.RequestCall(caller, target, signal)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTargetUnreachable):
		o.reply(id, core.TargetUnreachable{Target: target})
	case errors.Is(err, domain.ErrTargetBusy):
		o.reply(id, core.TargetBusy{Target: target})
	case errors.Is(err, domain.ErrCallerBusy):
		o.reply(id, core.CallerBusy{Target: target})
	default:
		o.replyError(id, err)
	}
	return err
}

// AnswerCall accepts the ringing call from initiator.
func (o *Orchestrator) AnswerCall(id core.ConnectionID, initiator domain.UserID, signal json.RawMessage) error {
	user, ok := o.requireUser(id)
	if !ok {
		return domain.ErrNotJoined
	}
	_, err := o.Calls.AnswerCall(user.ID, signal, initiator)
	return err
}

// RejectCall declines the ringing call from initiator.
func (o *Orchestrator) RejectCall(id core.ConnectionID, initiator domain.UserID) error {
	user, ok := o.requireUser(id)
	if !ok {
		return domain.ErrNotJoined
	}
	return o.Calls.RejectCall(user.ID, initiator)
}

// EndCall hangs up the session with counterpart.
func (o *Orchestrator) EndCall(id core.ConnectionID, counterpart domain.UserID) error {
	user, ok := o.requireUser(id)
	if !ok {
		return domain.ErrNotJoined
	}
	o.Calls.EndCall(user.ID, counterpart)
	return nil
}

// WhoAmI reports the connection's identity and current session.
func (o *Orchestrator) WhoAmI(id core.ConnectionID) {
	resp := core.WhoAmI{ConnectionID: id}
	if user, ok := o.Registry.UserOf(id); ok {
		resp.User = user
		if s, ok := o.Calls.SessionOf(user.ID); ok {
			resp.Session = &s.ID
		}
	}
	o.reply(id, resp)
}

// Pong answers a keepalive ping.
func (o *Orchestrator) Pong(id core.ConnectionID) {
	o.reply(id, core.Pong{})
}

// ReplyError sends an error event to a connection.
func (o *Orchestrator) ReplyError(id core.ConnectionID, code, message string) {
	o.reply(id, core.ErrorEvent{Code: code, Message: message})
}

func (o *Orchestrator) requireUser(id core.ConnectionID) (*domain.User, bool) {
	user, ok := o.Registry.UserOf(id)
	if !ok {
		o.replyError(id, domain.ErrNotJoined)
		return nil, false
	}
	return user, true
}

func (o *Orchestrator) replyError(id core.ConnectionID, err error) {
	o.reply(id, core.ErrorEvent{Code: core.ErrorCode(err), Message: err.Error()})
}

func (o *Orchestrator) reply(id core.ConnectionID, ev core.Event) {
	conn, ok := o.Registry.Conn(id)
	if !ok {
		return
	}
	o.Sender.Send(conn, ev)
}
