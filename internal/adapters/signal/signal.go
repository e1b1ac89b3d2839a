package signal

import (
	"context"
	"net/http"
	"sync"

	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/core"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/dkeye/callrelay/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type SignalWSController struct {
	Relay   *app.Relay
	Cfg     *config.Config
	Metrics *telemetry.Metrics

	upgrader websocket.Upgrader
}

// NewSignalWSController accepts any browser origin only in debug mode
// without an allowed_origins list.
func NewSignalWSController(relay *app.Relay, cfg *config.Config, metrics *telemetry.Metrics) *SignalWSController {
	allowAll := cfg.Mode == "debug" && len(cfg.AllowedOrigins) == 0
	return &SignalWSController{
		Relay:    relay,
		Cfg:      cfg,
		Metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(cfg.AllowedOrigins, allowAll)},
	}
}

// wsSignalConn is the relay's handle for one websocket. Frames queue in
// send and are written by writePump only.
type wsSignalConn struct {
	id   string
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSSignalConn(ws *websocket.Conn, buffer int) *wsSignalConn {
	return &wsSignalConn{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsSignalConn) ID() string { return c.id }

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and serves the connection until either
// side hangs up. It blocks for the lifetime of the socket.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, id domain.Identity) {
	// Upgrade writes its own headers; carry the session cookie over.
	hdr := http.Header{}
	for _, v := range c.Writer.Header().Values("Set-Cookie") {
		hdr.Add("Set-Cookie", v)
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, hdr)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("identity", id.String()).Msg("ws upgrade")
		return
	}

	conn := newWSSignalConn(ws, ctl.Cfg.SendBuffer)
	log.Info().Str("module", "signal").Str("sid", conn.ID()).Str("identity", id.String()).Msg("new WS connection")

	ctl.Relay.Connect(ctx, id, conn)

	pumpCtx, cancel := context.WithCancel(ctx)
	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		ctl.writePump(pumpCtx, conn)
	})
	wg.Go(func() {
		defer cancel()
		ctl.readPump(pumpCtx, conn)
	})
	wg.Wait()

	ctl.Relay.Disconnect(context.WithoutCancel(ctx), conn)
	conn.Close()
	log.Info().Str("module", "signal").Str("sid", conn.ID()).Str("identity", id.String()).Msg("WS connection closed")
}
