package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/metrics"
)

// Sender encodes events and queues them on a connection without blocking.
type Sender struct {
	Policy Policy
}

func NewSender(policy Policy) *Sender {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Sender{Policy: policy}
}

// Send reports whether the event was queued.
func (s *Sender) Send(conn core.SignalConnection, ev core.Event) bool {
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", ev.EventType()).Msg("encode event")
		return false
	}
	return s.SendFrame(conn, frame, ev.EventType())
}

// SendFrame queues an already encoded frame; used by broadcasts to encode once.
func (s *Sender) SendFrame(conn core.SignalConnection, frame core.Frame, eventType string) bool {
	err := conn.TrySend(frame)
	if err == nil {
		return true
	}
	if errors.Is(err, core.ErrConnectionClosed) {
		metrics.FramesDropped.WithLabelValues("closed").Inc()
		return false
	}
	metrics.FramesDropped.WithLabelValues("backpressure").Inc()
	action := s.Policy.OnBackPressure(conn, eventType)
	log.Warn().Err(err).Str("module", "app.relay").Str("event", eventType).Str("action", action.String()).Msg("send failed")
	if action == DisconnectSlow {
		conn.Close()
	}
	return false
}

// Resolver is the part of the registry the relay routes through.
type Resolver interface {
	Resolve(id domain.UserID) (core.ConnectionID, core.SignalConnection, bool)
}

// SignalRelay delivers events to an identity's current connection. It never
// touches call state and never buffers or retries.
type SignalRelay struct {
	resolver Resolver
	sender   *Sender
}

func NewSignalRelay(resolver Resolver, sender *Sender) *SignalRelay {
	return &SignalRelay{resolver: resolver, sender: sender}
}

// Deliver is a no-op returning false when target is not reachable.
func (r *SignalRelay) Deliver(target domain.UserID, ev core.Event) bool {
	connID, conn, ok := r.resolver.Resolve(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Str("event", ev.EventType()).Msg("target unresolved, dropping")
		return false
	}
	sent := r.sender.Send(conn, ev)
	log.Debug().Str("module", "app.relay").Str("target", string(target)).Str("conn", string(connID)).Str("event", ev.EventType()).Bool("sent", sent).Msg("deliver")
	return sent
}
