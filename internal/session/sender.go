package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/internal/p2p"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// Sender creates a room, waits for a receiver and pushes the files over a
// direct channel when one connects, otherwise over the relay.
type Sender struct {
	coord  Coordinator
	opts   Options
	roomID string
	sched  *transfer.Scheduler

	mu     sync.Mutex
	relay  *transfer.Relay
	direct *p2p.Manager
	peers  int
	joined chan struct{}
	once   sync.Once
	// aborted closes on the first terminal error, kept in abortErr.
	aborted   chan struct{}
	abortOnce sync.Once
	abortErr  error
}

func NewSender(coord Coordinator, opts Options) *Sender {
	return &Sender{
		coord:   coord,
		opts:    opts,
		roomID:  uuid.NewString(),
		joined:  make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

// RoomID is the id a receiver needs to join.
func (s *Sender) RoomID() string {
	return s.roomID
}

// Run transfers sources and tears the room down. It returns once every file
// has been confirmed or the session ended with an error.
func (s *Sender) Run(ctx context.Context, sources []*transfer.Source) (err error) {
	s.sched = transfer.NewScheduler(transfer.Options{
		ChunkSize:      s.opts.ChunkSize,
		WindowSize:     s.opts.WindowSize,
		MaxSessionSize: s.opts.MaxSessionSize,
		OnProgress:     s.opts.OnProgress,
	})
	if err := s.sched.Initiate(sources); err != nil {
		return err
	}
	s.registerHandlers()
	if err := s.coord.Emit(models.MsgCreateRoom, models.CreateRoom{RoomID: s.roomID, FilesInfo: s.sched.Files()}); err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	logger.Log.Info("Room created, waiting for receiver", "room_id", s.roomID)
	defer func() { s.teardown(err) }()

	if s.directWorthTrying(ctx) {
		if err := s.startDirect(); err != nil {
			logger.Log.Warn("Direct channel unavailable, using relay", "err", err)
		}
	}

	select {
	case <-s.joined:
	case <-s.aborted:
		return s.abortCause()
	case <-ctx.Done():
		return ctx.Err()
	}

	if direct := s.directManager(); direct != nil {
		if err := s.waitDirect(ctx, direct); err != nil {
			if !errors.Is(err, transfer.ErrChannelUnavailable) {
				return err
			}
			logger.Log.Warn("Falling back to relay", "room_id", s.roomID, "err", err)
			s.dropDirect()
		}
	}

	if direct := s.directManager(); direct != nil {
		return s.runDirect(ctx, direct)
	}
	return s.runRelay(ctx)
}

func (s *Sender) registerHandlers() {
	s.coord.RegisterHandler(models.UsersEvent(s.roomID), func(payload json.RawMessage) error {
		var m models.Membership
		if err := json.Unmarshal(payload, &m); err != nil {
			return err
		}
		return s.handleMembership(m)
	})
	s.coord.RegisterHandler(models.MsgReceiveSignal, func(payload json.RawMessage) error {
		var rs models.ReceiveSignal
		if err := json.Unmarshal(payload, &rs); err != nil {
			return err
		}
		if direct := s.directManager(); direct != nil {
			return direct.ApplySignals(rs.SignalData)
		}
		return nil
	})
	s.coord.RegisterHandler(models.MsgAcknowledged, func(payload json.RawMessage) error {
		var ack models.Acknowledge
		if err := json.Unmarshal(payload, &ack); err != nil {
			return err
		}
		s.mu.Lock()
		relay := s.relay
		s.mu.Unlock()
		if relay == nil {
			return nil
		}
		return relay.HandleAck(transfer.Acknowledgement{
			FileID:          ack.FileID,
			SequenceNumber:  ack.SequenceNumber,
			PercentComplete: ack.PercentComplete,
		})
	})
	s.coord.RegisterHandler(models.MsgFileReceived, func(payload json.RawMessage) error {
		var fr models.FileReceived
		if err := json.Unmarshal(payload, &fr); err != nil {
			return err
		}
		if direct := s.directManager(); direct != nil {
			direct.ConfirmReceived(fr.FileID)
		}
		return nil
	})
}

func (s *Sender) handleMembership(m models.Membership) error {
	joining := !m.UserLeft && m.UserCount > 0
	s.mu.Lock()
	s.peers = m.UserCount
	relay := s.relay
	direct := s.direct
	if joining {
		s.once.Do(func() { close(s.joined) })
	}
	s.mu.Unlock()

	if joining {
		logger.Log.Info("Receiver joined", "room_id", s.roomID, "user_id", m.UserID)
		if direct != nil {
			direct.PeerJoined()
		}
		return nil
	}
	if m.UserCount > 0 {
		return nil
	}
	logger.Log.Warn("Receiver left", "room_id", s.roomID, "user_id", m.UserID)
	if relay != nil {
		return relay.UpdateParticipants(0)
	}
	if s.sched.Active() {
		s.abort(fmt.Errorf("receiver %s left: %w", m.UserID, transfer.ErrPeerLeft))
	}
	return nil
}

// directWorthTrying skips the direct attempt when it is disabled or the
// STUN probe shows no outbound UDP.
func (s *Sender) directWorthTrying(ctx context.Context) bool {
	if s.opts.NewNegotiator == nil {
		return false
	}
	if s.opts.Prober == nil {
		return true
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.probeTimeout())
	defer cancel()
	info, err := s.opts.Prober.QueryEndpoint(probeCtx)
	if err != nil {
		logger.Log.Warn("STUN probe failed, skipping direct channel", "err", err)
		return false
	}
	logger.Log.Info("STUN probe succeeded", "endpoint", info.PublicEndpoint)
	return true
}

func (s *Sender) startDirect() error {
	neg, err := s.opts.NewNegotiator()
	if err != nil {
		return err
	}
	direct := p2p.NewManager(neg, p2p.Options{
		ConnectTimeout: s.opts.ConnectTimeout,
		Threshold:      s.opts.Threshold,
		Flush: func(signals []p2p.Signal) error {
			return s.coord.Emit(models.MsgSendSignal, models.SendSignal{Signal: signals, RoomID: s.roomID})
		},
		Announce: func(desc transfer.FileDescriptor) error {
			return s.coord.Emit(models.MsgFileInfoChannel, models.FileTransferInfo{FileDescriptor: desc, RoomID: s.roomID})
		},
		OnProgress: s.opts.OnProgress,
	})
	if err := direct.Start(true); err != nil {
		direct.Close()
		return err
	}
	s.mu.Lock()
	s.direct = direct
	joined := false
	select {
	case <-s.joined:
		joined = true
	default:
	}
	s.mu.Unlock()
	if joined {
		direct.PeerJoined()
	}
	return nil
}

func (s *Sender) directManager() *p2p.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct
}

func (s *Sender) dropDirect() {
	s.mu.Lock()
	direct := s.direct
	s.direct = nil
	s.mu.Unlock()
	if direct != nil {
		direct.Close()
	}
}

func (s *Sender) runDirect(ctx context.Context, direct *p2p.Manager) error {
	s.sched.SetDirect(direct)
	s.sched.SetMode(transfer.ModeP2P)
	errCh := make(chan error, 1)
	go func() { errCh <- s.sched.Send(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-s.sched.Done()
		return nil
	case <-s.aborted:
		return s.abortCause()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) runRelay(ctx context.Context) error {
	s.sched.SetMode(transfer.ModeRelay)
	s.sched.RegisterEmitter(func(c transfer.Chunk) error {
		return s.coord.Emit(models.MsgSendFile, models.SendFile{Chunk: c, RoomID: s.roomID})
	})
	relay := transfer.NewRelay(s.sched, s.opts.AckTimeout, s.queryRoom)
	s.mu.Lock()
	s.relay = relay
	s.mu.Unlock()

	if err := relay.Start(ctx); err != nil {
		return err
	}
	select {
	case <-s.sched.Done():
		return nil
	case err := <-relay.Failed():
		return err
	case <-s.aborted:
		return s.abortCause()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queryRoom is the relay's reconciliation check after a missing ack.
func (s *Sender) queryRoom(ctx context.Context) error {
	status, err := s.coord.ValidateRoom(ctx, s.roomID)
	if err != nil {
		logger.Log.Warn("Room status query failed", "room_id", s.roomID, "err", err)
		return nil
	}
	if !status.Status {
		return fmt.Errorf("room %s: %w", s.roomID, transfer.ErrRoomInvalid)
	}
	s.mu.Lock()
	peers := s.peers
	s.mu.Unlock()
	logger.Log.Warn("Room still valid while acknowledgements are missing",
		"room_id", s.roomID, "peers", peers, "in_flight", s.sched.InFlight())
	return nil
}

func (s *Sender) abort(err error) {
	s.abortOnce.Do(func() {
		s.mu.Lock()
		s.abortErr = err
		s.mu.Unlock()
		close(s.aborted)
	})
}

func (s *Sender) abortCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

// waitDirect waits for the direct channel, giving up early when the session
// aborts.
func (s *Sender) waitDirect(ctx context.Context, direct *p2p.Manager) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.aborted:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	err := direct.WaitConnected(waitCtx)
	select {
	case <-s.aborted:
		return s.abortCause()
	default:
	}
	return err
}

func (s *Sender) teardown(err error) {
	s.mu.Lock()
	relay := s.relay
	s.mu.Unlock()
	if relay != nil {
		relay.Stop()
	}
	s.dropDirect()

	req := models.DeleteRoom{RoomID: s.roomID}
	if err == nil {
		req.Info = &models.DeleteInfo{FileTransferComplete: true}
		logger.Log.Info("✅ Transfer complete", "room_id", s.roomID)
	} else {
		logger.Log.Error("❌ Transfer failed", "room_id", s.roomID, "reason", transfer.ReasonCode(err), "err", err)
	}
	if emitErr := s.coord.Emit(models.MsgDeleteRoom, req); emitErr != nil {
		logger.Log.Warn("Failed to delete room", "room_id", s.roomID, "err", emitErr)
	}
}

// Mode reports the path the files are travelling on.
func (s *Sender) Mode() transfer.TransferMode {
	if s.sched == nil {
		return ""
	}
	return s.sched.Mode()
}
