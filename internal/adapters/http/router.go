package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/adapters/signal"
	"github.com/dkeye/Callbox/internal/app/orch"
	"github.com/dkeye/Callbox/internal/config"
	rest "github.com/dkeye/Callbox/internal/transport/http"
)

type Deps struct {
	Orch       *orch.Orchestrator
	ICEServers []webrtc.ICEServer
	CallRate   *signal.CallRateLimiter
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(MetricsMiddleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("CallboxSessions", store))

	r.GET("/ok", rest.HandleOK)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("auth", cfg.Auth.JWTSecret != "").Msg("router setup")

	api := r.Group("/api")
	api.Use(IdentityMiddleware(NewTokenVerifier(cfg.Auth.JWTSecret)))

	handlers := &rest.Handlers{
		Presence:   deps.Orch.Presence,
		Calls:      deps.Orch.Calls,
		ICEServers: deps.ICEServers,
	}
	handlers.Register(api)

	ctrl := signal.NewSignalWSController(deps.Orch, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
		CallRate:       deps.CallRate,
	})
	api.GET("/ws/signal", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c, VerifiedIdentity(c))
	})

	return r
}
