package transfer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// Emitter puts one relay chunk on the wire.
type Emitter func(Chunk) error

// DirectStreamer moves a whole file over a direct channel and returns once
// the remote side confirmed it.
type DirectStreamer interface {
	StreamFile(ctx context.Context, desc FileDescriptor, r io.Reader) error
}

type Options struct {
	ChunkSize      int
	WindowSize     int
	MaxSessionSize int64
	OnProgress     func(Progress)
}

type entry struct {
	src    *Source
	sender *Sender
}

// Scheduler orchestrates the files of a session on both sides. On the
// sending side it owns one Sender per file and drives them strictly one
// after another, smallest first. On the receiving side it routes chunks
// into its Registry.
type Scheduler struct {
	opts Options

	mu       sync.Mutex
	entries  []*entry
	current  int
	window   *AckWindow
	mode     TransferMode
	emit     Emitter
	direct   DirectStreamer
	registry *Registry
	done     chan struct{}
	doneOnce sync.Once
}

func NewScheduler(opts Options) *Scheduler {
	return &Scheduler{
		opts:     opts,
		window:   NewAckWindow(opts.WindowSize),
		mode:     ModeRelay,
		registry: NewRegistry(),
		done:     make(chan struct{}),
	}
}

// Initiate builds one Sender per source and orders them by ascending size.
// The session is rejected before any chunk is produced when the total size
// exceeds the ceiling.
func (s *Scheduler) Initiate(sources []*Source) error {
	if len(sources) == 0 {
		return errors.New("no files to send")
	}
	var total int64
	for _, src := range sources {
		total += src.Size
	}
	if s.opts.MaxSessionSize > 0 && total > s.opts.MaxSessionSize {
		return fmt.Errorf("session is %d bytes, ceiling is %d: %w", total, s.opts.MaxSessionSize, ErrSizeLimitExceeded)
	}

	entries := make([]*entry, 0, len(sources))
	for _, src := range sources {
		sender, err := NewSender(src, s.opts.ChunkSize, s.opts.MaxSessionSize)
		if err != nil {
			return err
		}
		entries = append(entries, &entry{src: src, sender: sender})
	}
	slices.SortStableFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.src.Size, b.src.Size)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.current = 0
	s.window.Reset()
	logger.Log.Info("Session initiated", "files", len(entries), "total_bytes", total)
	return nil
}

// Files returns the descriptors in transmission order.
func (s *Scheduler) Files() []FileDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]FileDescriptor, 0, len(s.entries))
	for _, e := range s.entries {
		files = append(files, e.sender.FileInfo())
	}
	return files
}

func (s *Scheduler) RegisterEmitter(fn Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = fn
}

func (s *Scheduler) SetDirect(d DirectStreamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direct = d
}

func (s *Scheduler) SetMode(mode TransferMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	logger.Log.Info("Transfer mode selected", "mode", mode)
}

func (s *Scheduler) Mode() TransferMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Send begins or resumes transmission. In relay mode it emits until the
// window is full or every file is done. In direct mode it streams every
// remaining file and returns when the last one is confirmed.
func (s *Scheduler) Send(ctx context.Context) error {
	if s.Mode() == ModeP2P {
		return s.sendDirect(ctx)
	}
	return s.sendRelay(ctx)
}

func (s *Scheduler) sendRelay(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emit == nil {
		return errors.New("no emitter registered")
	}
	for s.current < len(s.entries) && !s.window.Full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := s.entries[s.current]
		if e.sender.Exhausted() {
			if s.window.Len() > 0 {
				return nil
			}
			s.advance()
			continue
		}
		chunk, ok, err := e.sender.NextChunk()
		if err != nil {
			return fmt.Errorf("failed to produce chunk: %w", err)
		}
		if !ok {
			continue
		}
		if err := s.emit(chunk); err != nil {
			return fmt.Errorf("failed to emit chunk %d of %s: %w", chunk.SequenceNumber, chunk.FileID, err)
		}
		s.window.Add(chunk.SequenceNumber)
		logger.Log.Debug("Chunk emitted", "file_id", chunk.FileID, "seq", chunk.SequenceNumber, "percent", chunk.PercentComplete)
		s.progress(Progress{FileID: chunk.FileID, Name: e.src.Name, Percent: chunk.PercentComplete})
	}
	s.finishIfDone()
	return nil
}

func (s *Scheduler) sendDirect(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.current >= len(s.entries) {
			s.finishIfDone()
			s.mu.Unlock()
			return nil
		}
		e := s.entries[s.current]
		direct := s.direct
		s.mu.Unlock()

		if direct == nil {
			return errors.New("no direct channel attached")
		}
		desc := e.sender.FileInfo()
		logger.Log.Info("Streaming file over direct channel", "file_id", desc.FileID, "name", desc.Name, "bytes", desc.ByteSize)
		if err := direct.StreamFile(ctx, desc, e.src.Reader()); err != nil {
			return fmt.Errorf("failed to stream %s: %w", desc.Name, err)
		}

		s.mu.Lock()
		s.advance()
		s.mu.Unlock()
	}
}

// Acknowledge clears the pending window for the current file. Acks for
// other files are ignored.
func (s *Scheduler) Acknowledge(fileID string, seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= len(s.entries) || s.entries[s.current].sender.FileInfo().FileID != fileID {
		logger.Log.Debug("Ignoring acknowledgement for inactive file", "file_id", fileID, "seq", seq)
		return
	}
	s.window.Ack(seq)
}

// InFlight reports the number of unacknowledged chunks of the current file.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window.Len()
}

// Active reports whether a transfer is underway and not yet finished.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) > 0 && s.current < len(s.entries)
}

// advance must be called with mu held.
func (s *Scheduler) advance() {
	e := s.entries[s.current]
	desc := e.sender.FileInfo()
	logger.Log.Info("File sent", "file_id", desc.FileID, "name", desc.Name)
	s.progress(Progress{FileID: desc.FileID, Name: desc.Name, Percent: 100, Done: true})
	s.current++
	s.window.Reset()
}

// finishIfDone must be called with mu held.
func (s *Scheduler) finishIfDone() {
	if len(s.entries) > 0 && s.current >= len(s.entries) {
		s.doneOnce.Do(func() {
			logger.Log.Info("All files sent", "files", len(s.entries))
			close(s.done)
		})
	}
}

// Done is closed once every scheduled file has been sent and confirmed.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Expect registers descriptors announced by the sending side.
func (s *Scheduler) Expect(files []FileDescriptor) {
	for _, f := range files {
		s.registry.Expect(f)
	}
}

// Receive routes an incoming chunk to its receiver and returns the object
// when that file completes.
func (s *Scheduler) Receive(c Chunk) (*Object, error) {
	obj, percent, err := s.registry.Absorb(c)
	if err != nil {
		return nil, err
	}
	p := Progress{FileID: c.FileID, Percent: percent}
	if obj != nil {
		p.Name = obj.Descriptor.Name
		p.Done = true
	}
	s.progress(p)
	return obj, nil
}

func (s *Scheduler) Object(fileID string) (*Object, bool) {
	return s.registry.Object(fileID)
}

func (s *Scheduler) Release(fileID string) {
	s.registry.Release(fileID)
}

func (s *Scheduler) progress(p Progress) {
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(p)
	}
}
