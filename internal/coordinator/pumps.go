package coordinator

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	// Relay chunks travel base64 encoded inside JSON.
	maxMessageSize = 4 << 20
)

func (h *Hub) ReadPump(c *Connection) {
	defer func() {
		close(c.IncomingCh)
		h.Disconnect(c)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.Mutex.Lock()
		c.LastSeen = time.Now()
		h.Mutex.Unlock()
		return nil
	})
	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket error", "user_id", c.ID, "err", err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.Mutex.Lock()
		c.LastSeen = time.Now()
		h.Mutex.Unlock()
		var msg models.Message
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			logger.Log.Warn("Failed to unmarshal message", "user_id", c.ID, "err", err)
			continue
		}
		select {
		case c.IncomingCh <- msg:
		case <-c.done:
			return
		}
	}
}

func (h *Hub) WritePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.SendCh:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(msg); err != nil {
				logger.Log.Warn("Failed to send message", "user_id", c.ID, "type", msg.Type, "err", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Warn("⚠️ Ping failed", "user_id", c.ID, "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// ProcessorPump handles one connection's messages in arrival order.
func (h *Hub) ProcessorPump(c *Connection) {
	for msg := range c.IncomingCh {
		h.Dispatch(c, &msg)
	}
}
