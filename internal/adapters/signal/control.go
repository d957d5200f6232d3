package signal

import "github.com/dkeye/Callbox/internal/core"

func (ctl *SignalWSController) handlePing(id core.ConnectionID) {
	ctl.Orch.Pong(id)
}

func (ctl *SignalWSController) handleWhoAmI(id core.ConnectionID) {
	ctl.Orch.WhoAmI(id)
}
