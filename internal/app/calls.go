package app

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/metrics"
)

// Directory is what the call manager needs from the connection registry.
type Directory interface {
	Resolver
	User(id domain.UserID) (*domain.User, bool)
	Unbind(id core.ConnectionID) (*domain.User, bool)
}

// Notifier delivers events to an identity.
type Notifier interface {
	Deliver(target domain.UserID, ev core.Event) bool
}

// CallManager owns the lifecycle of call sessions. A single mutex guards the
// session index; every state transition and the transport-close path
// serialize on it.
type CallManager struct {
	mu       sync.Mutex
	sessions map[domain.PairKey]*domain.CallSession
	byUser   map[domain.UserID]domain.PairKey

	dir   Directory
	relay Notifier
	now   func() time.Time
	newID func() domain.CallID
}

func NewCallManager(dir Directory, relay Notifier) *CallManager {
	return &CallManager{
		sessions: make(map[domain.PairKey]*domain.CallSession),
		byUser:   make(map[domain.UserID]domain.PairKey),
		dir:      dir,
		relay:    relay,
		now:      time.Now,
		newID:    func() domain.CallID { return domain.CallID(uuid.NewString()) },
	}
}

// RequestCall creates a ringing session and forwards the offer to target.
func (m *CallManager) RequestCall(caller core.Caller, target domain.UserID, signal json.RawMessage) (*domain.CallSession, error) {
	initiator := caller.UserID
	if initiator == target {
		return nil, domain.ErrSelfCall
	}
	logger := log.With().Str("module", "app.calls").Str("user", string(initiator)).Str("target", string(target)).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, _, ok := m.dir.Resolve(target); !ok {
		metrics.CallEvents.WithLabelValues(metrics.OutcomeUnreachable).Inc()
		logger.Info().Msg("call target unreachable")
		return nil, domain.ErrTargetUnreachable
	}
	if _, busy := m.byUser[target]; busy {
		metrics.CallEvents.WithLabelValues(metrics.OutcomeBusy).Inc()
		m.relay.Deliver(target, core.CallBusyNotice{Caller: caller})
		logger.Info().Msg("call target busy")
		return nil, domain.ErrTargetBusy
	}
	if _, busy := m.byUser[initiator]; busy {
		metrics.CallEvents.WithLabelValues(metrics.OutcomeCallerBusy).Inc()
		logger.Info().Msg("caller already in a call")
		return nil, domain.ErrCallerBusy
	}

	s := &domain.CallSession{
		ID:        m.newID(),
		Initiator: initiator,
		Responder: target,
		State:     domain.CallRinging,
		CreatedAt: m.now(),
	}
	key := s.Key()
	m.sessions[key] = s
	m.byUser[initiator] = key
	m.byUser[target] = key
	metrics.CallEvents.WithLabelValues(metrics.OutcomeRequested).Inc()
	metrics.CallsInProgress.WithLabelValues(string(domain.CallRinging)).Inc()

	m.relay.Deliver(target, core.IncomingCall{Caller: caller, SessionID: s.ID, Signal: signal})
	logger.Info().Str("session", string(s.ID)).Msg("call ringing")
	cp := *s
	return &cp, nil
}

// AnswerCall moves the ringing session between responder and initiator to
// active and forwards the answer to the initiator.
func (m *CallManager) AnswerCall(responder domain.UserID, signal json.RawMessage, initiator domain.UserID) (*domain.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[domain.NewPairKey(responder, initiator)]
	if !ok || s.State != domain.CallRinging || s.Responder != responder {
		m.stale("answer", responder, initiator)
		return nil, domain.ErrStaleSession
	}
	now := m.now()
	s.State = domain.CallActive
	s.AnsweredAt = &now
	metrics.CallEvents.WithLabelValues(metrics.OutcomeAnswered).Inc()
	metrics.CallsInProgress.WithLabelValues(string(domain.CallRinging)).Dec()
	metrics.CallsInProgress.WithLabelValues(string(domain.CallActive)).Inc()

	m.relay.Deliver(initiator, core.CallAnswered{From: responder, SessionID: s.ID, Signal: signal})
	log.Info().Str("module", "app.calls").Str("session", string(s.ID)).Str("user", string(responder)).Msg("call active")
	cp := *s
	return &cp, nil
}

// RejectCall drops a ringing session on the responder's behalf.
func (m *CallManager) RejectCall(responder, initiator domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[domain.NewPairKey(responder, initiator)]
	if !ok || s.State != domain.CallRinging || s.Responder != responder {
		m.stale("reject", responder, initiator)
		return domain.ErrStaleSession
	}
	m.removeLocked(s)
	metrics.CallEvents.WithLabelValues(metrics.OutcomeRejected).Inc()

	m.relay.Deliver(initiator, core.CallRejected{
		From:      responder,
		Name:      m.displayName(responder),
		SessionID: s.ID,
	})
	log.Info().Str("module", "app.calls").Str("session", string(s.ID)).Str("user", string(responder)).Msg("call rejected")
	return nil
}

// EndCall ends a ringing or active session. Ending a session that is already
// gone is a no-op.
func (m *CallManager) EndCall(requester, counterpart domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[domain.NewPairKey(requester, counterpart)]
	if !ok {
		log.Debug().Str("module", "app.calls").Str("user", string(requester)).Str("target", string(counterpart)).Msg("end of absent call ignored")
		return
	}
	m.removeLocked(s)
	metrics.CallEvents.WithLabelValues(metrics.OutcomeEnded).Inc()

	m.relay.Deliver(counterpart, core.CallEnded{
		From:      requester,
		Name:      m.displayName(requester),
		SessionID: s.ID,
		Reason:    core.EndReasonHangup,
	})
	log.Info().Str("module", "app.calls").Str("session", string(s.ID)).Str("user", string(requester)).Msg("call ended")
}

// Release is the transport-close path: the connection is unbound and, if its
// identity became unreachable, its session is dropped, all under the session
// index lock so no call operation can observe one without the other.
func (m *CallManager) Release(id core.ConnectionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, offline := m.dir.Unbind(id); offline {
		m.disconnectLocked(user)
	}
}

// disconnectLocked drops any session the identity takes part in and tells the
// counterpart the call ended.
func (m *CallManager) disconnectLocked(user *domain.User) {
	key, ok := m.byUser[user.ID]
	if !ok {
		return
	}
	s := m.sessions[key]
	m.removeLocked(s)
	metrics.CallEvents.WithLabelValues(metrics.OutcomeDropped).Inc()

	m.relay.Deliver(s.Counterpart(user.ID), core.CallEnded{
		From:      user.ID,
		Name:      user.DisplayName,
		SessionID: s.ID,
		Reason:    core.EndReasonDisconnect,
	})
	log.Info().Str("module", "app.calls").Str("session", string(s.ID)).Str("user", string(user.ID)).Str("state", string(s.State)).Msg("call dropped on disconnect")
}

func (m *CallManager) removeLocked(s *domain.CallSession) {
	delete(m.sessions, s.Key())
	delete(m.byUser, s.Initiator)
	delete(m.byUser, s.Responder)
	metrics.CallsInProgress.WithLabelValues(string(s.State)).Dec()
}

func (m *CallManager) stale(op string, user, other domain.UserID) {
	metrics.CallEvents.WithLabelValues(metrics.OutcomeStale).Inc()
	log.Debug().Str("module", "app.calls").Str("op", op).Str("user", string(user)).Str("target", string(other)).Msg("stale session operation ignored")
}

func (m *CallManager) displayName(id domain.UserID) string {
	if u, ok := m.dir.User(id); ok {
		return u.DisplayName
	}
	return string(id)
}

// SessionOf returns the non-terminal session an identity takes part in.
func (m *CallManager) SessionOf(id domain.UserID) (*domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byUser[id]
	if !ok {
		return nil, false
	}
	cp := *m.sessions[key]
	return &cp, true
}

// Snapshot lists all non-terminal sessions, oldest first.
func (m *CallManager) Snapshot() []domain.CallSession {
	m.mu.Lock()
	out := make([]domain.CallSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
