package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/homeboy445/fileSharerApp/pkg/utils"
)

var ErrClosed = errors.New("connection is closed")

// HandlerFunc receives the raw payload of one coordinator message.
type HandlerFunc func(payload json.RawMessage) error

// Client is a peer's connection to the coordinator.
type Client struct {
	Conn       *websocket.Conn
	baseURL    string
	userID     string
	httpClient *http.Client
	mu         sync.RWMutex
	handlers   map[string]HandlerFunc
	sendCh     chan *models.Message
	incomingCh chan models.Message
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	closeErr   error
	// quit asks the write pump to flush sendCh and say goodbye.
	quit       chan struct{}
	writerDone chan struct{}
	pumping    atomic.Bool
}

func NewClient(parentCtx context.Context, baseURL, userID string) *Client {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Client{
		baseURL:    baseURL,
		userID:     userID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		handlers:   make(map[string]HandlerFunc),
		sendCh:     make(chan *models.Message, 256),
		incomingCh: make(chan models.Message, 256),
		ctx:        ctx,
		cancel:     cancel,
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) Disconnected() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) RegisterHandler(msgType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

func (c *Client) handler(msgType string) (HandlerFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[msgType]
	return h, ok
}

func (c *Client) Connect() error {
	wsURL := utils.BuildWebSocketURL(c.baseURL, c.userID)
	logger.Log.Info("Attempting connection", "url", wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, wsURL, nil)
	if err != nil {
		logger.Log.Error("Connection error", "err", err)
		return err
	}
	c.Conn = conn
	logger.Log.Info("Connected to coordinator", "url", wsURL)
	return nil
}

// Emit queues a message for the write pump. It blocks while the send buffer
// is full so that relay chunks are never dropped.
func (c *Client) Emit(msgType string, payload any) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.quit:
		return ErrClosed
	case <-c.ctx.Done():
		return ErrClosed
	case c.sendCh <- msg:
		return nil
	}
}

// Close writes out every queued message and a close frame, then drops the
// connection. Emit fails once Close has started.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		if c.pumping.Load() {
			select {
			case <-c.writerDone:
			case <-time.After(writeWait):
				logger.Log.Warn("Timed out flushing outgoing messages")
			}
		}
		c.cancel()
		if c.Conn != nil {
			c.closeErr = c.Conn.Close()
		}
	})
	return c.closeErr
}
