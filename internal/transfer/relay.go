package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// StatusQuery reconciles with the coordinator after an acknowledgement
// went missing. A non-nil error aborts the relay.
type StatusQuery func(ctx context.Context) error

// Relay paces relay-path emission on acknowledgements. Every ack triggers
// exactly one Send; a watchdog runs a one-shot status query when acks stop
// arriving.
type Relay struct {
	sched   *Scheduler
	timeout time.Duration
	query   StatusQuery

	mu      sync.Mutex
	ctx     context.Context
	timer   *time.Timer
	stopped bool
	failed  chan error
}

func NewRelay(sched *Scheduler, ackTimeout time.Duration, query StatusQuery) *Relay {
	return &Relay{
		sched:   sched,
		timeout: ackTimeout,
		query:   query,
		failed:  make(chan error, 1),
	}
}

// Start emits the first window.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
	return r.pump()
}

// HandleAck applies a receiver acknowledgement and sends the next batch.
func (r *Relay) HandleAck(ack Acknowledgement) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.disarm()
	r.mu.Unlock()

	logger.Log.Debug("Acknowledgement received", "file_id", ack.FileID, "seq", ack.SequenceNumber, "percent", ack.PercentComplete)
	r.sched.Acknowledge(ack.FileID, ack.SequenceNumber)
	return r.pump()
}

// UpdateParticipants mirrors the remote participant count. Dropping to zero
// while a transfer is underway aborts it.
func (r *Relay) UpdateParticipants(count int) error {
	if count > 0 || !r.sched.Active() {
		return nil
	}
	err := fmt.Errorf("transfer in flight: %w", ErrPeerLeft)
	logger.Log.Error("Receiver left mid-transfer", "error", err)
	r.fail(err)
	return err
}

// Failed delivers the first terminal relay error.
func (r *Relay) Failed() <-chan error {
	return r.failed
}

func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.disarm()
}

func (r *Relay) pump() error {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.sched.Send(ctx); err != nil {
		r.fail(err)
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped && r.sched.InFlight() > 0 {
		r.arm()
	}
	return nil
}

// arm and disarm must be called with mu held.
func (r *Relay) arm() {
	r.disarm()
	r.timer = time.AfterFunc(r.timeout, r.watchdog)
}

func (r *Relay) disarm() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Relay) watchdog() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	ctx := r.ctx
	r.mu.Unlock()

	logger.Log.Warn("No acknowledgement received, querying room status",
		"timeout", r.timeout, "in_flight", r.sched.InFlight(), "error", ErrAcknowledgementTimeout)
	if r.query == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.query(ctx); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrAcknowledgementTimeout, err))
	}
}

func (r *Relay) fail(err error) {
	r.Stop()
	select {
	case r.failed <- err:
	default:
	}
}
