package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
)

type joinPayload struct {
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
	Avatar      string        `json:"avatar"`
}

func (ctl *SignalWSController) handleJoin(id core.ConnectionID, verified Identity, data []byte) {
	var p joinPayload
	if !ctl.decode(id, data, &p) {
		return
	}
	if p.DisplayName == "" {
		p.DisplayName = verified.Name
	}
	if err := ctl.Orch.Join(id, p.UserID, p.DisplayName, p.Avatar, verified.UserID); err != nil {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("user", string(p.UserID)).Msg("join")
}
