package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
)

type callPayload struct {
	TargetID domain.UserID   `json:"targetId"`
	Signal   json.RawMessage `json:"signal"`
	Avatar   string          `json:"avatar"`
}

func (ctl *SignalWSController) decodeCall(id core.ConnectionID, data []byte) (callPayload, bool) {
	var p callPayload
	if !ctl.decode(id, data, &p) {
		return p, false
	}
	if p.TargetID == "" {
		ctl.Orch.ReplyError(id, core.CodeBadPayload, "targetId required")
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleCallRequest(id core.ConnectionID, data []byte) {
	p, ok := ctl.decodeCall(id, data)
	if !ok {
		return
	}
	if user, joined := ctl.Orch.Registry.UserOf(id); joined && !ctl.opts.CallRate.Allow(user.ID) {
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("user", string(user.ID)).Msg("call request rate limited")
		ctl.Orch.ReplyError(id, core.CodeRateLimited, "too many call requests")
		return
	}
	_ = ctl.Orch.RequestCall(id, p.TargetID, p.Signal, p.Avatar)
}

func (ctl *SignalWSController) handleCallAnswer(id core.ConnectionID, data []byte) {
	p, ok := ctl.decodeCall(id, data)
	if !ok {
		return
	}
	ignoreStale(id, "call-answer", ctl.Orch.AnswerCall(id, p.TargetID, p.Signal))
}

func (ctl *SignalWSController) handleCallReject(id core.ConnectionID, data []byte) {
	p, ok := ctl.decodeCall(id, data)
	if !ok {
		return
	}
	ignoreStale(id, "call-reject", ctl.Orch.RejectCall(id, p.TargetID))
}

func (ctl *SignalWSController) handleCallEnd(id core.ConnectionID, data []byte) {
	p, ok := ctl.decodeCall(id, data)
	if !ok {
		return
	}
	_ = ctl.Orch.EndCall(id, p.TargetID)
}

// ignoreStale drops answers and rejects that lost a race with a hangup or a
// disconnect. The client already got, or is about to get, call-ended.
func ignoreStale(id core.ConnectionID, op string, err error) {
	if errors.Is(err, domain.ErrStaleSession) {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Str("op", op).Msg("stale session")
	}
}
