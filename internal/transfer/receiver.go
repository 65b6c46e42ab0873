package transfer

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/homeboy445/fileSharerApp/internal/codec"
)

type part struct {
	seq  int
	data []byte
}

// Receiver accumulates the chunks of one file. Parts are kept in arrival
// order and sorted once, when the file is finalized.
type Receiver struct {
	desc        FileDescriptor
	parts       []part
	seen        map[int]struct{}
	totalChunks int
	finalSeen   bool
	percent     int
	object      *Object
}

func NewReceiver(desc FileDescriptor) *Receiver {
	return &Receiver{
		desc: desc,
		seen: make(map[int]struct{}),
	}
}

func (r *Receiver) FileInfo() FileDescriptor {
	return r.desc
}

// Absorb decodes and stores c. It reports whether the file is now complete.
func (r *Receiver) Absorb(c Chunk) (bool, error) {
	if r.object != nil {
		return true, nil
	}
	if c.FileID != r.desc.FileID {
		return false, fmt.Errorf("chunk for %s routed to receiver of %s", c.FileID, r.desc.FileID)
	}
	if c.SequenceNumber < 1 || (c.TotalChunks > 0 && c.SequenceNumber > c.TotalChunks) {
		return false, fmt.Errorf("sequence number %d out of range for %s", c.SequenceNumber, c.FileID)
	}
	if _, dup := r.seen[c.SequenceNumber]; dup {
		return false, nil
	}
	raw, err := codec.Decode(c.Payload)
	if err != nil {
		return false, fmt.Errorf("file %s chunk %d: %w", c.FileID, c.SequenceNumber, err)
	}
	if len(raw) != c.RawByteLength {
		return false, fmt.Errorf("file %s chunk %d: expected %d bytes, got %d: %w",
			c.FileID, c.SequenceNumber, c.RawByteLength, len(raw), ErrCorruptChunk)
	}

	r.seen[c.SequenceNumber] = struct{}{}
	r.parts = append(r.parts, part{seq: c.SequenceNumber, data: raw})
	if r.totalChunks == 0 {
		r.totalChunks = c.TotalChunks
	}
	if c.IsFinal {
		r.finalSeen = true
	}
	if c.PercentComplete > r.percent {
		r.percent = c.PercentComplete
	}
	if !r.finalSeen || len(r.parts) < r.totalChunks {
		return false, nil
	}
	r.finalize()
	return true, nil
}

func (r *Receiver) finalize() {
	slices.SortStableFunc(r.parts, func(a, b part) int {
		return cmp.Compare(a.seq, b.seq)
	})
	var size int
	for _, p := range r.parts {
		size += len(p.data)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	for _, p := range r.parts {
		buf.Write(p.data)
	}
	r.parts = nil
	r.seen = nil
	r.percent = 100
	if r.desc.ByteSize == 0 {
		r.desc.ByteSize = int64(size)
	}
	r.object = &Object{Descriptor: r.desc, Data: buf.Bytes()}
}

func (r *Receiver) Complete() bool {
	return r.object != nil
}

func (r *Receiver) Percent() int {
	return r.percent
}

// Assembled returns the reassembled file. It may be called any number of
// times once the file is complete.
func (r *Receiver) Assembled() (*Object, error) {
	if r.object == nil {
		return nil, fmt.Errorf("file %s: %w", r.desc.FileID, ErrNotReady)
	}
	return r.object, nil
}
