package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Upgrader is shared by the websocket endpoint. Origin checks are done by
// the CORS middleware in front of it.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client streams one subscription to a websocket connection.
type Client struct {
	conn   *websocket.Conn
	sub    *Subscription
	logger zerolog.Logger
}

// NewClient subscribes to hub with filter on behalf of conn.
func NewClient(hub *Hub, conn *websocket.Conn, filter Filter, logger zerolog.Logger) *Client {
	return &Client{conn: conn, sub: hub.Subscribe(filter), logger: logger}
}

// Serve pumps changes out and control frames in until either side closes.
// It blocks.
func (c *Client) Serve() {
	go c.readPump()
	c.writePump()
}

// readPump discards client messages; it exists to process pong and close
// frames.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("ws read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		select {
		case change, ok := <-c.sub.C():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				c.logger.Error().Err(err).Msg("ws marshal change")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
