package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

var ErrInvalidMetadata = errors.New("invalid file metadata")

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultThreshold      = 64 * 1024
)

type Options struct {
	ConnectTimeout time.Duration
	// Threshold is the initial slice size and backpressure threshold. It is
	// replaced by the channel's own low threshold when one is advertised.
	Threshold uint64
	// Flush relays a batch of local signals to the remote peer.
	Flush func(signals []Signal) error
	// Announce sends the metadata of a file before its bytes.
	Announce   func(desc transfer.FileDescriptor) error
	OnFile     func(obj *transfer.Object)
	OnProgress func(p transfer.Progress)
	OnError    func(err error)
}

type inbound struct {
	desc     transfer.FileDescriptor
	buf      []byte
	received int64
}

// Manager drives one direct channel through signaling, connection and
// flow-controlled streaming. It implements transfer.DirectStreamer.
type Manager struct {
	opts Options
	neg  Negotiator

	flushMu   sync.Mutex
	mu        sync.Mutex
	state     State
	initiator bool
	queued    []Signal
	flushed   bool
	canFlush  bool
	channel   DataChannel
	threshold uint64
	confirms  map[string]chan struct{}
	incoming  *inbound
	early     []byte
	err       error

	connected     chan struct{}
	connectedOnce sync.Once
	failed        chan struct{}
	failedOnce    sync.Once
	closed        chan struct{}
	closedOnce    sync.Once
	drained       chan struct{}
}

func NewManager(neg Negotiator, opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Manager{
		opts:      opts,
		neg:       neg,
		state:     StateIdle,
		threshold: opts.Threshold,
		confirms:  make(map[string]chan struct{}),
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
		closed:    make(chan struct{}),
		drained:   make(chan struct{}, 1),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that moved the manager to the errored state.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) Connected() <-chan struct{} {
	return m.connected
}

func (m *Manager) Closed() <-chan struct{} {
	return m.closed
}

// Start begins negotiation. The joining side may flush signals right away;
// the initiator holds them until PeerJoined.
func (m *Manager) Start(initiator bool) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", m.state)
	}
	m.state = StateSignaling
	m.initiator = initiator
	m.canFlush = !initiator
	m.mu.Unlock()

	m.neg.OnSignal(m.queueSignal)
	m.neg.OnOpen(m.handleOpen)
	m.neg.OnFailure(m.handleFailure)
	logger.Log.Info("Direct channel negotiation started", "initiator", initiator)
	if err := m.neg.Start(initiator); err != nil {
		m.handleFailure(err)
		return fmt.Errorf("failed to start negotiation: %w", err)
	}
	return nil
}

// PeerJoined releases the initiator's queued signals.
func (m *Manager) PeerJoined() {
	m.mu.Lock()
	m.canFlush = true
	m.mu.Unlock()
	m.flush()
}

func (m *Manager) queueSignal(sig Signal) {
	m.mu.Lock()
	m.queued = append(m.queued, sig)
	m.mu.Unlock()
	m.flush()
}

// flush sends every queued signal as one batch. Batches go out in the
// order they were produced.
func (m *Manager) flush() {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	if !(m.canFlush || m.flushed) || len(m.queued) == 0 {
		m.mu.Unlock()
		return
	}
	batch := m.queued
	m.queued = nil
	m.flushed = true
	m.mu.Unlock()

	if m.opts.Flush == nil {
		return
	}
	if err := m.opts.Flush(batch); err != nil {
		logger.Log.Error("Failed to flush signals", "count", len(batch), "err", err)
		return
	}
	logger.Log.Debug("Signals flushed", "count", len(batch))
}

// ApplySignals feeds remote signals to the negotiator in arrival order.
func (m *Manager) ApplySignals(signals []Signal) error {
	for _, sig := range signals {
		if err := m.neg.Apply(sig); err != nil {
			return fmt.Errorf("failed to apply signal: %w", err)
		}
	}
	return nil
}

// WaitConnected blocks until the channel opens. Negotiation failure or the
// connect timeout resolve to ErrChannelUnavailable.
func (m *Manager) WaitConnected(ctx context.Context) error {
	timer := time.NewTimer(m.opts.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-m.connected:
		return nil
	case <-m.failed:
		return fmt.Errorf("negotiation failed: %w: %w", transfer.ErrChannelUnavailable, m.Err())
	case <-timer.C:
		logger.Log.Warn("Direct channel did not connect in time", "timeout", m.opts.ConnectTimeout)
		return fmt.Errorf("no connection after %s: %w", m.opts.ConnectTimeout, transfer.ErrChannelUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) handleOpen(ch DataChannel) {
	m.mu.Lock()
	if m.channel != nil || m.state == StateClosed || m.state == StateErrored {
		m.mu.Unlock()
		return
	}
	if advertised := ch.BufferedAmountLowThreshold(); advertised > 0 {
		m.threshold = advertised
	}
	m.channel = ch
	m.state = StateConnected
	threshold := m.threshold
	m.mu.Unlock()

	ch.SetBufferedAmountLowThreshold(threshold)
	ch.OnBufferedAmountLow(func() {
		select {
		case m.drained <- struct{}{}:
		default:
		}
	})
	ch.OnMessage(m.handleData)
	ch.OnClose(m.handleClose)
	m.connectedOnce.Do(func() { close(m.connected) })
	logger.Log.Info("Direct channel connected", "threshold", threshold)
}

func (m *Manager) handleFailure(err error) {
	m.mu.Lock()
	connected := m.channel != nil
	if m.err == nil {
		m.err = err
	}
	m.mu.Unlock()
	m.failedOnce.Do(func() { close(m.failed) })
	if connected {
		m.handleClose()
		return
	}
	logger.Log.Warn("Direct channel negotiation failed", "err", err)
}

// StreamFile announces desc, writes its bytes in threshold-sized slices
// under backpressure and returns once the remote side confirmed it.
func (m *Manager) StreamFile(ctx context.Context, desc transfer.FileDescriptor, r io.Reader) error {
	m.mu.Lock()
	ch := m.channel
	if ch == nil || m.state == StateClosed || m.state == StateErrored {
		m.mu.Unlock()
		return transfer.ErrChannelUnavailable
	}
	m.state = StateStreaming
	threshold := m.threshold
	confirm := make(chan struct{})
	m.confirms[desc.FileID] = confirm
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.confirms, desc.FileID)
		if m.state == StateStreaming {
			m.state = StateConnected
		}
		m.mu.Unlock()
	}()

	if m.opts.Announce != nil {
		if err := m.opts.Announce(desc); err != nil {
			return fmt.Errorf("failed to announce %s: %w", desc.Name, err)
		}
	}

	buf := make([]byte, threshold)
	var sent int64
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := m.waitDrained(ctx, ch, threshold); err != nil {
				return err
			}
			if err := ch.Send(buf[:n]); err != nil {
				return fmt.Errorf("failed to write to channel: %w", err)
			}
			sent += int64(n)
			m.progress(transfer.Progress{FileID: desc.FileID, Name: desc.Name, Percent: percentOf(sent, desc.ByteSize)})
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", desc.Name, readErr)
		}
	}
	logger.Log.Debug("File written to channel, awaiting confirmation", "file_id", desc.FileID, "bytes", sent)

	select {
	case <-confirm:
		return nil
	case <-m.closed:
		return fmt.Errorf("awaiting confirmation of %s: %w", desc.Name, transfer.ErrChannelClosedPrematurely)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitDrained suspends while the channel holds more than threshold unsent
// bytes, resuming on the channel's low-watermark event.
func (m *Manager) waitDrained(ctx context.Context, ch DataChannel, threshold uint64) error {
	for ch.BufferedAmount() > threshold {
		select {
		case <-m.drained:
		case <-m.closed:
			return transfer.ErrChannelClosedPrematurely
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ConfirmReceived marks a streamed file as landed on the remote side.
func (m *Manager) ConfirmReceived(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if confirm, ok := m.confirms[fileID]; ok {
		close(confirm)
		delete(m.confirms, fileID)
	}
}

// HandleMetadata starts accumulating the announced file. Bytes that arrived
// ahead of it are consumed first.
func (m *Manager) HandleMetadata(desc transfer.FileDescriptor) error {
	if desc.ByteSize < 0 {
		return fmt.Errorf("file %s announced with size %d: %w", desc.FileID, desc.ByteSize, ErrInvalidMetadata)
	}
	m.mu.Lock()
	if m.incoming != nil {
		logger.Log.Warn("Replacing unfinished incoming file", "file_id", m.incoming.desc.FileID)
	}
	m.incoming = &inbound{desc: desc, buf: make([]byte, 0, desc.ByteSize)}
	if m.state == StateConnected {
		m.state = StateStreaming
	}
	early := m.early
	m.early = nil
	done, p := m.absorb(early)
	m.mu.Unlock()
	logger.Log.Info("Receiving file over direct channel", "file_id", desc.FileID, "name", desc.Name, "bytes", desc.ByteSize)
	m.deliver(done, p)
	return nil
}

func (m *Manager) handleData(data []byte) {
	m.mu.Lock()
	if m.incoming == nil {
		m.early = append(m.early, data...)
		m.mu.Unlock()
		return
	}
	done, p := m.absorb(data)
	m.mu.Unlock()
	m.deliver(done, p)
}

// absorb must be called with mu held. Bytes beyond the announced size are
// kept for the next file.
func (m *Manager) absorb(data []byte) (*transfer.Object, *transfer.Progress) {
	in := m.incoming
	if in == nil {
		return nil, nil
	}
	need := in.desc.ByteSize - in.received
	if int64(len(data)) > need {
		m.early = append(m.early, data[need:]...)
		data = data[:need]
	}
	in.buf = append(in.buf, data...)
	in.received += int64(len(data))
	if in.received < in.desc.ByteSize {
		if len(data) == 0 {
			return nil, nil
		}
		return nil, &transfer.Progress{FileID: in.desc.FileID, Name: in.desc.Name, Percent: percentOf(in.received, in.desc.ByteSize)}
	}
	m.incoming = nil
	if m.state == StateStreaming {
		m.state = StateConnected
	}
	return &transfer.Object{Descriptor: in.desc, Data: in.buf}, nil
}

func (m *Manager) deliver(obj *transfer.Object, p *transfer.Progress) {
	if p != nil {
		m.progress(*p)
	}
	if obj == nil {
		return
	}
	logger.Log.Info("File received over direct channel", "file_id", obj.Descriptor.FileID, "bytes", len(obj.Data))
	m.progress(transfer.Progress{FileID: obj.Descriptor.FileID, Name: obj.Descriptor.Name, Percent: 100, Done: true})
	if m.opts.OnFile != nil {
		m.opts.OnFile(obj)
	}
}

// handleClose runs when the remote peer went away. Losing the channel with
// a partially received file is an error.
func (m *Manager) handleClose() {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateErrored {
		m.mu.Unlock()
		return
	}
	var err error
	if in := m.incoming; in != nil {
		err = fmt.Errorf("%s closed at %d of %d bytes: %w",
			in.desc.Name, in.received, in.desc.ByteSize, transfer.ErrChannelClosedPrematurely)
	} else if len(m.early) > 0 {
		err = fmt.Errorf("%d unclaimed bytes: %w", len(m.early), transfer.ErrChannelClosedPrematurely)
	}
	if err != nil {
		m.state = StateErrored
		m.err = err
	} else {
		m.state = StateClosed
	}
	m.incoming = nil
	m.early = nil
	m.mu.Unlock()

	m.closedOnce.Do(func() { close(m.closed) })
	if err != nil {
		logger.Log.Error("Direct channel closed mid-transfer", "err", err)
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		return
	}
	logger.Log.Info("Direct channel closed")
}

// Close tears the channel down and releases any pending wait.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state != StateErrored {
		m.state = StateClosed
	}
	ch := m.channel
	m.mu.Unlock()

	m.closedOnce.Do(func() { close(m.closed) })
	if ch != nil {
		ch.Close()
	}
	return m.neg.Close()
}

func (m *Manager) progress(p transfer.Progress) {
	if m.opts.OnProgress != nil {
		m.opts.OnProgress(p)
	}
}

func percentOf(done, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(done * 100 / total)
}
