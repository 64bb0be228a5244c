// Package stream maintains the one long-lived event-stream connection
// to the server. All presence, chat and voice signaling traffic is
// multiplexed over it as typed JSON messages; the client reconnects
// automatically on loss and tells subscribers about both edges.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/voxium/client/internal/core"
	"github.com/voxium/client/internal/wire"
)

var ErrBackpressure = errors.New("backpressure")

// Handler receives every inbound message plus connect/disconnect
// edges. Callbacks are serialized: one reader goroutine delivers them
// in arrival order.
type Handler interface {
	OnStreamConnect()
	OnStreamMessage(wire.Message)
	OnStreamDisconnect()
}

type Options struct {
	URL        string
	ReadLimit  int64
	PingPeriod time.Duration
}

type Client struct {
	opts Options

	mu       sync.RWMutex
	conn     *websocket.Conn
	send     chan core.Frame
	open     bool
	handlers []Handler
}

func NewClient(opts Options) *Client {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &Client{opts: opts}
}

// Subscribe registers a handler. Must be called before Run.
func (c *Client) Subscribe(h Handler) {
	c.handlers = append(c.handlers, h)
}

// Send marshals v and enqueues it. Silently dropped when the
// connection is not currently open; ErrBackpressure when the send
// buffer is full.
func (c *Client) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return nil
	}
	select {
	case c.send <- core.Frame(b):
	default:
		return ErrBackpressure
	}
	return nil
}

// IsOpen reports whether a connection is currently established.
func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Run dials and serves the connection until ctx is done, redialing
// with exponential backoff after every loss. The backoff resets once
// a connection is established, so a flapping server cannot trigger a
// tight reconnect storm.
func (c *Client) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			wait := bo.NextBackOff()
			log.Warn().Err(err).Str("module", "stream").Dur("retry_in", wait).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		c.serve(ctx, conn)

		for _, h := range c.handlers {
			h.OnStreamDisconnect()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// readWait is how long the reader tolerates silence before declaring
// the connection dead. Pongs for our pings refresh it, so a half-open
// socket fails the read instead of blocking forever.
func (c *Client) readWait() time.Duration {
	return c.opts.PingPeriod * 10 / 9
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	if c.opts.ReadLimit > 0 {
		conn.SetReadLimit(c.opts.ReadLimit)
	}
	_ = conn.SetReadDeadline(time.Now().Add(c.readWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readWait()))
	})

	send := make(chan core.Frame, 32)
	c.mu.Lock()
	c.conn = conn
	c.send = send
	c.open = true
	c.mu.Unlock()

	log.Info().Str("module", "stream").Str("url", c.opts.URL).Msg("connected")
	for _, h := range c.handlers {
		h.OnStreamConnect()
	}

	writeCtx, cancelWrite := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(writeCtx, conn, send)
	}()

	c.readPump(ctx, conn)

	c.mu.Lock()
	c.open = false
	c.conn = nil
	c.mu.Unlock()

	cancelWrite()
	_ = conn.Close()
	<-done
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send <-chan core.Frame) {
	ping := time.NewTicker(c.opts.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "stream").Msg("writePump ping error")
				return
			}
		case data := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "stream").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("module", "stream").Msg("readPump read error")
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "stream").Msg("bad json")
		return
	}
	if msg.MessageType() == wire.MsgPing {
		_ = c.Send(&wire.Pong{Type: wire.MsgPong})
		return
	}
	for _, h := range c.handlers {
		h.OnStreamMessage(msg)
	}
}
