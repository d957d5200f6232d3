// Package http holds the read-only REST handlers next to the signaling
// endpoint.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Callbox/internal/domain"
)

// PresenceSource lists who is online.
type PresenceSource interface {
	Snapshot() []domain.PresenceEntry
}

// CallSource lists non-terminal call sessions.
type CallSource interface {
	Snapshot() []domain.CallSession
}

type Handlers struct {
	Presence   PresenceSource
	Calls      CallSource
	ICEServers []webrtc.ICEServer
}

type PresenceResponse struct {
	Users []domain.PresenceEntry `json:"users"`
}

type CallsResponse struct {
	Calls []domain.CallSession `json:"calls"`
}

type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/presence", h.handlePresence)
	r.GET("/calls", h.handleCalls)
	r.GET("/ice-servers", h.handleICEServers)
}

// HandleOK is the liveness probe.
func HandleOK(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) handlePresence(c *gin.Context) {
	c.JSON(http.StatusOK, PresenceResponse{Users: h.Presence.Snapshot()})
}

func (h *Handlers) handleCalls(c *gin.Context) {
	c.JSON(http.StatusOK, CallsResponse{Calls: h.Calls.Snapshot()})
}

func (h *Handlers) handleICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, ICEServersResponse{ICEServers: h.ICEServers})
}
