package http

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/huddle/internal/config"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

type SocketController struct {
	relay    Dispatcher
	cfg      config.RelayConfig
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewSocketController(relay Dispatcher, cfg config.RelayConfig, origins *OriginPolicy, log *slog.Logger) *SocketController {
	return &SocketController{
		relay: relay,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckRequest,
		},
		log: log,
	}
}

// Serve upgrades the request and runs the relay connection until it closes.
// The socket carries no credentials; clients announce themselves with
// user_connected.
func (c *SocketController) Serve(ctx *gin.Context) {
	const op = "api.http.socket.Serve"

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		c.log.Warn("websocket upgrade failed",
			slog.String("op", op),
			slog.String("origin", ctx.GetHeader("Origin")),
			sl.Err(err),
		)
		return
	}

	client := NewClient(conn, c.relay, c.cfg, c.log)
	c.log.Debug("relay connection opened",
		slog.String("op", op),
		slog.String("conn_id", client.ID()),
		slog.String("remote_addr", ctx.ClientIP()),
	)

	client.Run(context.WithoutCancel(ctx.Request.Context()))
}
