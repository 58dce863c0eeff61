package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/realtime/hub"
)

// client is one websocket connection. It implements hub.Conn.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan domain.Envelope
	done   chan struct{}
	once   sync.Once
	tenant string // tenant of the owner JWT presented at handshake, if any
}

func newClient(id string, conn *websocket.Conn, buffer int, tenant string) *client {
	return &client{
		id:     id,
		conn:   conn,
		send:   make(chan domain.Envelope, buffer),
		done:   make(chan struct{}),
		tenant: tenant,
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(e domain.Envelope) error {
	select {
	case <-c.done:
		return hub.ErrConnClosed
	default:
	}
	select {
	case c.send <- e:
		return nil
	default:
		return hub.ErrSendQueueFull
	}
}

// Close stops the write pump, which closes the socket and unblocks the reader.
func (c *client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writePump(cfg config.Realtime) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
