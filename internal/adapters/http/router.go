package http

import (
	"context"
	"net/http"

	"github.com/dkeye/callrelay/internal/adapters/signal"
	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName    = "CallRelaySession"
	sessionUserKey = "user_id"
	identityKey    = "identity"
)

// IdentityMiddleware resolves who is calling. The userId query parameter
// wins and is remembered in the session; later requests may omit it.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		id := domain.Identity(c.Query("userId"))
		if id == "" {
			if v, ok := sess.Get(sessionUserKey).(string); ok {
				id = domain.Identity(v)
			}
		}
		if err := id.Validate(); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if v, _ := sess.Get(sessionUserKey).(string); v != id.String() {
			sess.Set(sessionUserKey, id.String())
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identityOf(c *gin.Context) domain.Identity {
	id, _ := c.Get(identityKey)
	v, _ := id.(domain.Identity)
	return v
}

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay, metrics *telemetry.Metrics) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(relay, cfg, metrics)
	iceServers := cfg.WebRTCICEServers()

	api := r.Group("/api")
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	authed := api.Group("", IdentityMiddleware())
	authed.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("identity", identityOf(c).String()).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, identityOf(c))
	})
	authed.GET("/presence", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"onlineIdentities": relay.Presence.Snapshot()})
	})
	authed.GET("/calls", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"calls": relay.Calls.Snapshot()})
	})

	return r
}
