package coordinator

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

const maxParticipants = 2

type HandlerFunc func(msg *models.Message, c *Connection) error

// Room groups the owner and at most one joined participant.
type Room struct {
	ID           string
	Owner        string
	Participants map[string]struct{}
	FilesInfo    []transfer.FileDescriptor
}

type Hub struct {
	Connections map[string]*Connection
	Rooms       map[string]*Room
	Mutex       sync.RWMutex
	handlers    map[string]HandlerFunc
}

func NewHub() *Hub {
	h := &Hub{
		Connections: make(map[string]*Connection),
		Rooms:       make(map[string]*Room),
		handlers:    make(map[string]HandlerFunc),
	}
	h.RegisterDefaultHandlers()
	return h
}

func (h *Hub) RegisterHandler(msgType string, handler HandlerFunc) {
	h.handlers[msgType] = handler
}

// Connect registers a websocket connection and starts its pumps.
func (h *Hub) Connect(id string, conn *websocket.Conn) *Connection {
	c := NewConnection(id, conn)
	h.Register(c)
	go h.ReadPump(c)
	go h.WritePump(c)
	go h.ProcessorPump(c)
	return c
}

// Register adds c, replacing an older connection with the same id.
func (h *Hub) Register(c *Connection) {
	h.Mutex.Lock()
	old, exists := h.Connections[c.ID]
	h.Connections[c.ID] = c
	h.Mutex.Unlock()
	if exists {
		logger.Log.Info("♻️ Peer reconnecting", "user_id", c.ID)
		h.leaveRoom(old)
		old.close()
		return
	}
	logger.Log.Info("✨ Peer connected", "user_id", c.ID)
}

// Disconnect removes c and its room membership.
func (h *Hub) Disconnect(c *Connection) {
	h.Mutex.Lock()
	if current, ok := h.Connections[c.ID]; ok && current == c {
		delete(h.Connections, c.ID)
	}
	h.Mutex.Unlock()
	h.leaveRoom(c)
	c.close()
	logger.Log.Info("Peer disconnected", "user_id", c.ID)
}

// Send queues msg for the peer with the given id.
func (h *Hub) Send(id string, msg *models.Message) error {
	h.Mutex.RLock()
	c, exists := h.Connections[id]
	h.Mutex.RUnlock()
	if !exists {
		return fmt.Errorf("peer %s not connected", id)
	}
	select {
	case <-c.done:
		return fmt.Errorf("peer %s disconnected", id)
	case c.SendCh <- msg:
		return nil
	default:
		return fmt.Errorf("peer %s send channel full", id)
	}
}

func (h *Hub) sendPayload(id, msgType string, payload any) {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		logger.Log.Error("Failed to build message", "type", msgType, "err", err)
		return
	}
	if err := h.Send(id, msg); err != nil {
		logger.Log.Warn("Failed to deliver message", "type", msgType, "user_id", id, "err", err)
	}
}

// Dispatch runs the handler registered for msg.Type.
func (h *Hub) Dispatch(c *Connection, msg *models.Message) {
	handler, ok := h.handlers[msg.Type]
	if !ok {
		logger.Log.Warn("⚠️ No handler for message type", "type", msg.Type, "user_id", c.ID)
		return
	}
	if err := handler(msg, c); err != nil {
		logger.Log.Error("❌ Handler error", "type", msg.Type, "user_id", c.ID, "err", err)
	}
}

// RoomStatus answers room validation queries.
func (h *Hub) RoomStatus(roomID string) models.RoomStatus {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	room, ok := h.Rooms[roomID]
	if !ok {
		return models.RoomStatus{Status: false, FilesInfo: []transfer.FileDescriptor{}}
	}
	return models.RoomStatus{Status: true, FilesInfo: room.FilesInfo}
}
