package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/metrics"
	"github.com/roach88/starcore/internal/wire"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 1 << 20
	sendBuffer   = 256
)

// conn is one websocket participant.
//
// The pumps own the socket. The fields marked below are touched only by the
// hub's Run loop.
type conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	// Run loop only.
	clientType wire.ClientType
	connected  bool
	private    *engine.Engine
}

func newConn(id string, ws *websocket.Conn, logger *slog.Logger) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With("conn", id),
	}
}

// deliver queues data for the write pump. It reports false when the
// connection is closed or its buffer is full.
func (c *conn) deliver(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close stops the write pump, which closes the socket and so ends the read
// pump. Safe to call more than once.
func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump decodes inbound frames onto the hub queue until the socket
// fails, then enqueues the leave event.
func (c *conn) readPump(q *eventQueue) {
	defer func() {
		q.Enqueue(event{Type: eventLeave, Conn: c})
		c.close()
	}()

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("connection lost", "error", err)
			}
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			metrics.Frames.WithLabelValues("in", "invalid").Inc()
			c.logger.Warn("invalid frame dropped", "error", err)
			continue
		}
		metrics.Frames.WithLabelValues("in", string(msg.Type)).Inc()

		if !q.Enqueue(event{Type: eventFrame, Conn: c, Frame: msg}) {
			return
		}
	}
}

// writePump drains the send buffer and keeps the peer alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
