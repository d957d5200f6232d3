package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/metrics"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id core.ConnectionID, verified Identity, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.OnDisconnect(id)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(id, verified, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(id core.ConnectionID, verified Identity, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		ctl.Orch.ReplyError(id, core.CodeBadPayload, "malformed message")
		return
	}
	metrics.SignalMessages.WithLabelValues(metricLabel(env.Type)).Inc()

	switch env.Type {
	case "join":
		ctl.handleJoin(id, verified, data)
	case "call-request":
		ctl.handleCallRequest(id, data)
	case "call-answer":
		ctl.handleCallAnswer(id, data)
	case "call-reject":
		ctl.handleCallReject(id, data)
	case "call-end":
		ctl.handleCallEnd(id, data)
	case "ping":
		ctl.handlePing(id)
	case "whoami":
		ctl.handleWhoAmI(id)
	default:
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("type", env.Type).Msg("unknown signal")
	}
}

var knownTypes = map[string]bool{
	"join": true, "call-request": true, "call-answer": true, "call-reject": true,
	"call-end": true, "ping": true, "whoami": true,
}

// metricLabel keeps client-controlled type strings out of label cardinality.
func metricLabel(t string) string {
	if knownTypes[t] {
		return t
	}
	return "unknown"
}

// decode unmarshals the payload into v, answering bad_payload on failure.
func (ctl *SignalWSController) decode(id core.ConnectionID, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad payload")
		ctl.Orch.ReplyError(id, core.CodeBadPayload, err.Error())
		return false
	}
	return true
}
