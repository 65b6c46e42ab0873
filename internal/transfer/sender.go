package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/homeboy445/fileSharerApp/internal/codec"
)

// Sender produces the chunks of one file. It only moves forward; a new
// Sender must be built to transmit the file again.
type Sender struct {
	src         *Source
	desc        FileDescriptor
	chunkSize   int
	totalChunks int
	next        int
	sentBytes   int64
	buf         []byte
}

func NewSender(src *Source, chunkSize int, maxSize int64) (*Sender, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}
	if maxSize > 0 && src.Size > maxSize {
		return nil, fmt.Errorf("%s is %d bytes, ceiling is %d: %w", src.Name, src.Size, maxSize, ErrSizeLimitExceeded)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id: %w", err)
	}
	total := int((src.Size + int64(chunkSize) - 1) / int64(chunkSize))
	if total == 0 {
		total = 1
	}
	return &Sender{
		src: src,
		desc: FileDescriptor{
			Name:     src.Name,
			MimeType: src.MimeType,
			ByteSize: src.Size,
			FileID:   id.String(),
		},
		chunkSize:   chunkSize,
		totalChunks: total,
		buf:         make([]byte, chunkSize),
	}, nil
}

func (s *Sender) FileInfo() FileDescriptor {
	return s.desc
}

func (s *Sender) TotalChunks() int {
	return s.totalChunks
}

func (s *Sender) Exhausted() bool {
	return s.next >= s.totalChunks
}

// NextChunk reads, compresses and stamps the next chunk. ok is false once
// the final chunk has been produced.
func (s *Sender) NextChunk() (Chunk, bool, error) {
	if s.Exhausted() {
		return Chunk{}, false, nil
	}
	off := int64(s.next) * int64(s.chunkSize)
	n := s.src.Size - off
	if n > int64(s.chunkSize) {
		n = int64(s.chunkSize)
	}
	raw := s.buf[:n]
	if n > 0 {
		read, err := s.src.Data.ReadAt(raw, off)
		if err != nil && !(errors.Is(err, io.EOF) && int64(read) == n) {
			return Chunk{}, false, fmt.Errorf("failed to read %s at offset %d: %w", s.desc.Name, off, err)
		}
	}
	payload, err := codec.Encode(raw)
	if err != nil {
		return Chunk{}, false, err
	}
	s.next++
	s.sentBytes += n

	chunk := Chunk{
		FileID:          s.desc.FileID,
		SequenceNumber:  s.next,
		Payload:         payload,
		RawByteLength:   int(n),
		IsFinal:         s.next == s.totalChunks,
		TotalChunks:     s.totalChunks,
		PercentComplete: percentOf(s.sentBytes, s.src.Size),
	}
	if s.next == 1 {
		chunk.Name = s.desc.Name
		chunk.MimeType = s.desc.MimeType
		chunk.ByteSize = s.desc.ByteSize
	}
	return chunk, true, nil
}

func percentOf(done, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(done * 100 / total)
}
