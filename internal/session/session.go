// Package session composes the transfer engine with a coordinator
// connection into the two peer roles.
package session

import (
	"context"
	"time"

	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/internal/p2p"
	"github.com/homeboy445/fileSharerApp/internal/stun"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/internal/ws"
)

// Coordinator is the message surface of the coordination server.
type Coordinator interface {
	UserID() string
	Emit(msgType string, payload any) error
	RegisterHandler(msgType string, handler ws.HandlerFunc)
	ValidateRoom(ctx context.Context, roomID string) (*models.RoomStatus, error)
}

// Prober checks outbound UDP reachability before a direct attempt.
type Prober interface {
	QueryEndpoint(ctx context.Context) (*stun.EndpointInfo, error)
}

// NegotiatorFactory builds the negotiator of one direct channel attempt.
type NegotiatorFactory func() (p2p.Negotiator, error)

type Options struct {
	ChunkSize      int
	WindowSize     int
	MaxSessionSize int64
	AckTimeout     time.Duration
	ConnectTimeout time.Duration
	Threshold      uint64
	ProbeTimeout   time.Duration
	// Linger is how long a finished receiver waits for the sender to close
	// the room before it disconnects.
	Linger      time.Duration
	DownloadDir string
	// NewNegotiator is nil when direct channels are disabled.
	NewNegotiator NegotiatorFactory
	Prober        Prober
	OnProgress    func(transfer.Progress)
}

func (o Options) probeTimeout() time.Duration {
	if o.ProbeTimeout <= 0 {
		return 3 * time.Second
	}
	return o.ProbeTimeout
}

func (o Options) linger() time.Duration {
	if o.Linger <= 0 {
		return 3 * time.Second
	}
	return o.Linger
}
