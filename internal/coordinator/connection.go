package coordinator

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/models"
)

type Connection struct {
	ID         string
	Conn       *websocket.Conn
	RoomID     string
	LastSeen   time.Time
	SendCh     chan *models.Message
	IncomingCh chan models.Message
	done       chan struct{}
	closeOnce  sync.Once
}

func NewConnection(id string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:         id,
		Conn:       conn,
		LastSeen:   time.Now(),
		SendCh:     make(chan *models.Message, 256),
		IncomingCh: make(chan models.Message, 256),
		done:       make(chan struct{}),
	}
}

// Done is closed once the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}
