package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// Options tunes per-connection behaviour.
type Options struct {
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		PingInterval:   30 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 64 << 10,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = def.MaxMessageSize
	}
	// pings must arrive before the peer's read deadline
	if o.PingInterval >= o.ReadTimeout {
		o.PingInterval = o.ReadTimeout * 9 / 10
	}
	return o
}

// client is one websocket connection. Rooms write to it through Send; a
// single writer goroutine owns the socket's write side.
type client struct {
	id   string
	conn *websocket.Conn
	opts Options

	send      chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, opts Options) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		opts: opts,
		send: make(chan domain.Event, opts.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string {
	return c.id
}

// Send queues evt without blocking. A connection whose buffer is full is
// closed; its participant becomes disconnected.
func (c *client) Send(evt domain.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- evt:
		return true
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("event", evt.Type).
			Msg("send buffer full, closing slow connection")
		c.close()
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue in FIFO order and keeps the peer alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteJSON(evt); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("ws write error")
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("ws ping failed")
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		}
	}
}
