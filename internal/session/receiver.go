package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/homeboy445/fileSharerApp/internal/models"
	"github.com/homeboy445/fileSharerApp/internal/p2p"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// Receiver joins a room and saves every announced file, from whichever
// path it arrives on.
type Receiver struct {
	coord Coordinator
	opts  Options
	store *Store
	sched *transfer.Scheduler

	mu       sync.Mutex
	roomID   string
	direct   *p2p.Manager
	pending  map[string]transfer.FileDescriptor
	saved    []string
	done     chan struct{}
	doneOnce sync.Once
	// released closes when the sender tears the room down after the last file.
	released     chan struct{}
	releasedOnce sync.Once
	aborted      chan error
}

func NewReceiver(coord Coordinator, opts Options) *Receiver {
	return &Receiver{
		coord:    coord,
		opts:     opts,
		store:    NewStore(opts.DownloadDir),
		pending:  make(map[string]transfer.FileDescriptor),
		done:     make(chan struct{}),
		released: make(chan struct{}),
		aborted:  make(chan error, 1),
	}
}

// Run joins roomID and blocks until every file is saved. It returns the
// saved paths in completion order.
func (r *Receiver) Run(ctx context.Context, roomID string) ([]string, error) {
	r.roomID = roomID
	status, err := r.coord.ValidateRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate room: %w", err)
	}
	if !status.Status || len(status.FilesInfo) == 0 {
		return nil, fmt.Errorf("room %s: %w", roomID, transfer.ErrRoomInvalid)
	}

	var total int64
	for _, f := range status.FilesInfo {
		total += f.ByteSize
		r.pending[f.FileID] = f
	}
	if err := r.store.EnsureSpace(ctx, total); err != nil {
		return nil, err
	}

	r.sched = transfer.NewScheduler(transfer.Options{OnProgress: r.opts.OnProgress})
	r.sched.Expect(status.FilesInfo)
	r.registerHandlers()
	defer r.closeDirect()

	if r.opts.NewNegotiator != nil {
		if err := r.startDirect(); err != nil {
			logger.Log.Warn("Direct channel unavailable, relying on relay", "err", err)
		}
	}

	if err := r.coord.Emit(models.MsgJoinRoom, models.JoinRoom{RoomID: roomID, UserID: r.coord.UserID()}); err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	logger.Log.Info("Joined room", "room_id", roomID, "files", len(status.FilesInfo), "bytes", total)

	select {
	case <-r.done:
		logger.Log.Info("✅ All files received", "room_id", roomID)
		r.awaitRelease(ctx)
		return r.Saved(), nil
	case err := <-r.aborted:
		logger.Log.Error("❌ Receive failed", "room_id", roomID, "reason", transfer.ReasonCode(err), "err", err)
		return r.Saved(), err
	case <-ctx.Done():
		return r.Saved(), ctx.Err()
	}
}

// Saved lists the paths written so far.
func (r *Receiver) Saved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.saved))
	copy(out, r.saved)
	return out
}

func (r *Receiver) registerHandlers() {
	r.coord.RegisterHandler(models.MsgReceiveFile, func(payload json.RawMessage) error {
		var sf models.SendFile
		if err := json.Unmarshal(payload, &sf); err != nil {
			return err
		}
		obj, err := r.sched.Receive(sf.Chunk)
		if err != nil {
			r.abort(err)
			return err
		}
		if obj != nil {
			if err := r.complete(obj); err != nil {
				return err
			}
		}
		err = r.coord.Emit(models.MsgAcknowledge, models.Acknowledge{
			RoomID:          r.roomID,
			FileID:          sf.FileID,
			SequenceNumber:  sf.SequenceNumber,
			PercentComplete: sf.PercentComplete,
			UserID:          r.coord.UserID(),
		})
		if err != nil {
			return err
		}
		r.finishIfDone()
		return nil
	})
	r.coord.RegisterHandler(models.RoomFullEvent(r.coord.UserID()), func(json.RawMessage) error {
		r.abort(fmt.Errorf("room %s: %w", r.roomID, transfer.ErrRoomFull))
		return nil
	})
	r.coord.RegisterHandler(models.MsgRoomInvalidated, func(payload json.RawMessage) error {
		var inv models.RoomInvalidated
		if err := json.Unmarshal(payload, &inv); err != nil {
			return err
		}
		if r.remaining() > 0 {
			r.abort(fmt.Errorf("room %s closed with %d files outstanding: %w", inv.RoomID, r.remaining(), transfer.ErrSessionAborted))
			return nil
		}
		r.releasedOnce.Do(func() { close(r.released) })
		return nil
	})
	r.coord.RegisterHandler(models.MsgReceiveSignal, func(payload json.RawMessage) error {
		var rs models.ReceiveSignal
		if err := json.Unmarshal(payload, &rs); err != nil {
			return err
		}
		if direct := r.directManager(); direct != nil {
			return direct.ApplySignals(rs.SignalData)
		}
		return nil
	})
	r.coord.RegisterHandler(models.MsgFileInfoChannel, func(payload json.RawMessage) error {
		var info models.FileTransferInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			return err
		}
		if err := r.checkAnnounced(info.FileDescriptor); err != nil {
			return err
		}
		if direct := r.directManager(); direct != nil {
			return direct.HandleMetadata(info.FileDescriptor)
		}
		return nil
	})
}

func (r *Receiver) startDirect() error {
	neg, err := r.opts.NewNegotiator()
	if err != nil {
		return err
	}
	direct := p2p.NewManager(neg, p2p.Options{
		ConnectTimeout: r.opts.ConnectTimeout,
		Threshold:      r.opts.Threshold,
		Flush: func(signals []p2p.Signal) error {
			return r.coord.Emit(models.MsgSendSignal, models.SendSignal{Signal: signals, RoomID: r.roomID})
		},
		OnFile: func(obj *transfer.Object) {
			if err := r.complete(obj); err != nil {
				return
			}
			if err := r.coord.Emit(models.MsgFileReceived, models.FileReceived{FileID: obj.Descriptor.FileID, RoomID: r.roomID}); err != nil {
				logger.Log.Warn("Failed to confirm file", "file_id", obj.Descriptor.FileID, "err", err)
			}
			r.finishIfDone()
		},
		OnProgress: r.opts.OnProgress,
		OnError:    r.abort,
	})
	r.mu.Lock()
	r.direct = direct
	r.mu.Unlock()
	return direct.Start(false)
}

func (r *Receiver) directManager() *p2p.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.direct
}

func (r *Receiver) closeDirect() {
	r.mu.Lock()
	direct := r.direct
	r.direct = nil
	r.mu.Unlock()
	if direct != nil {
		direct.Close()
	}
}

// complete saves a finished file once and releases its buffer. The session
// is only done once the confirmation for it has been queued, see finishIfDone.
func (r *Receiver) complete(obj *transfer.Object) error {
	id := obj.Descriptor.FileID
	r.mu.Lock()
	desc, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		logger.Log.Debug("Ignoring file already saved or never announced", "file_id", id)
		return nil
	}
	if obj.Descriptor.Name == "" {
		obj.Descriptor = desc
	}

	path, err := r.store.Save(obj)
	r.sched.Release(id)
	if err != nil {
		r.abort(err)
		return err
	}

	r.mu.Lock()
	delete(r.pending, id)
	r.saved = append(r.saved, path)
	r.mu.Unlock()
	return nil
}

func (r *Receiver) finishIfDone() {
	if r.remaining() == 0 {
		r.doneOnce.Do(func() { close(r.done) })
	}
}

// awaitRelease keeps the connection up until the sender deletes the room, so
// the final confirmation is not lost to an early disconnect.
func (r *Receiver) awaitRelease(ctx context.Context) {
	timer := time.NewTimer(r.opts.linger())
	defer timer.Stop()
	select {
	case <-r.released:
	case <-timer.C:
		logger.Log.Warn("Sender did not close the room", "room_id", r.roomID)
	case <-ctx.Done():
	}
}

// checkAnnounced accepts direct-channel metadata only for a file listed by
// the room, with the size the room announced.
func (r *Receiver) checkAnnounced(desc transfer.FileDescriptor) error {
	r.mu.Lock()
	want, ok := r.pending[desc.FileID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("metadata for unexpected file %q: %w", desc.FileID, p2p.ErrInvalidMetadata)
	}
	if desc.ByteSize != want.ByteSize {
		return fmt.Errorf("file %q announced %d bytes, room lists %d: %w", desc.FileID, desc.ByteSize, want.ByteSize, p2p.ErrInvalidMetadata)
	}
	return nil
}

func (r *Receiver) remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Receiver) abort(err error) {
	select {
	case r.aborted <- err:
	default:
	}
}
