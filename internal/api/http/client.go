package http

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/huddle/internal/config"
	"github.com/immxrtalbeast/huddle/internal/relay"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
	"golang.org/x/time/rate"
)

// Dispatcher is the part of the relay a socket client talks to.
type Dispatcher interface {
	Attach(conn relay.Conn)
	Detach(ctx context.Context, connID string)
	Dispatch(ctx context.Context, connID string, frame []byte) error
}

// Client is one relay connection over a websocket. The read pump feeds
// inbound frames to the relay in arrival order; the write pump owns every
// write to the socket.
type Client struct {
	id      string
	conn    *websocket.Conn
	relay   Dispatcher
	cfg     config.RelayConfig
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(conn *websocket.Conn, dispatcher Dispatcher, cfg config.RelayConfig, log *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:      id,
		conn:    conn,
		relay:   dispatcher,
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		log:     log.With(slog.String("conn_id", id)),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a frame for the write pump. It never blocks: a full buffer or a
// closed client drops the frame.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close asks the write pump to say goodbye and close the socket.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Run attaches the client to the relay and serves it until the socket dies.
func (c *Client) Run(ctx context.Context) {
	c.relay.Attach(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	const op = "api.http.client.readPump"
	log := c.log.With(slog.String("op", op))

	defer func() {
		c.relay.Detach(ctx, c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		log.Warn("failed to set read deadline", sl.Err(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(log, err)
			return
		}

		if !c.limiter.Allow() {
			log.Warn("rate limit exceeded, dropping frame")
			continue
		}

		if err := c.relay.Dispatch(ctx, c.id, frame); err != nil {
			log.Warn("event not handled", sl.Err(err))
		}
	}
}

func (c *Client) logReadError(log *slog.Logger, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn("frame exceeded maximum size", slog.Int64("limit", c.cfg.MaxMessageSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Debug("client disconnected")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		log.Info("unexpected close", sl.Err(err))
	default:
		log.Debug("read loop ended", sl.Err(err))
	}
}

func (c *Client) writePump() {
	const op = "api.http.client.writePump"
	log := c.log.With(slog.String("op", op))

	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				log.Debug("write failed", sl.Err(err))
				return
			}
			// flush whatever queued up while we were writing
			for n := len(c.send); n > 0; n-- {
				if err := c.write(<-c.send); err != nil {
					log.Debug("write failed", sl.Err(err))
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("ping failed", sl.Err(err))
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection"))
			return
		}
	}
}

func (c *Client) write(frame []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

var _ relay.Conn = (*Client)(nil)
