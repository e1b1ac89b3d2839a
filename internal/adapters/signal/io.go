package signal

import (
	"context"
	"time"

	"github.com/dkeye/callrelay/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// writePump is the only writer of c.conn. Returning closes the socket,
// which in turn unblocks readPump.
func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", c.ID()).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", c.ID()).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", c.ID()).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", c.ID()).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", c.ID()).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *wsSignalConn) {
	defer func() {
		log.Debug().Str("module", "signal").Str("sid", c.ID()).Msg("readPump closing")
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait)) }
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", c.ID()).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = extend()

		if typ != websocket.TextMessage {
			ctl.Metrics.MessageDropped(ctx, "binary")
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			ctl.Metrics.MessageDropped(ctx, "malformed")
			log.Debug().Err(err).Str("module", "signal").Str("sid", c.ID()).Msg("bad frame")
			continue
		}
		ctl.Relay.Dispatch(ctx, c, msg)
	}
}
