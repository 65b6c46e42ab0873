package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

const (
	readDeadline = 70 * time.Second
	writeWait    = 10 * time.Second
)

// connectionMonitor keeps the read deadline alive on coordinator pings.
func (c *Client) connectionMonitor() {
	c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.Conn.SetPingHandler(func(appData string) error {
		logger.Log.Debug("Received ping from coordinator")
		c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
		err := c.Conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
}

func (c *Client) readPump() {
	defer logger.Log.Info("🔴 Read pump stopped")
	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			c.Close()
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
		var msg models.Message
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			logger.Log.Warn("⚠️ Failed to parse message", "warn", err)
			continue
		}
		select {
		case c.incomingCh <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	defer close(c.writerDone)
	defer logger.Log.Info("🔴 Write pump stopped")
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.write(msg); err != nil {
				c.cancel()
				return
			}
		case <-c.quit:
			c.flush()
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) write(msg *models.Message) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteJSON(msg); err != nil {
		logger.Log.Error("❌ Write failed", "type", msg.Type, "err", err)
		return err
	}
	return nil
}

// flush drains sendCh and ends with a close frame.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.Conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait)); err != nil {
				logger.Log.Debug("Close frame not sent", "err", err)
			}
			return
		}
	}
}

// dispatchPump runs handlers one at a time in arrival order.
func (c *Client) dispatchPump() {
	defer logger.Log.Info("🔴 Dispatch pump stopped")
	for {
		select {
		case msg := <-c.incomingCh:
			handler, ok := c.handler(msg.Type)
			if !ok {
				logger.Log.Debug("No handler for message type", "type", msg.Type)
				continue
			}
			if err := handler(msg.Payload); err != nil {
				logger.Log.Error("❌ Handler error", "type", msg.Type, "err", err)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// RunPumps starts all pumps and the connection monitor.
func (c *Client) RunPumps() {
	c.connectionMonitor()
	c.pumping.Store(true)
	go c.readPump()
	go c.writePump()
	go c.dispatchPump()
	logger.Log.Info("✅ All pumps started")
}
