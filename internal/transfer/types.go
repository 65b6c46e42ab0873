package transfer

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

type TransferMode string

const (
	ModeP2P   TransferMode = "p2p"
	ModeRelay TransferMode = "relay"
)

// FileDescriptor identifies one file of a session. FileID is the join key
// between sender and receiver state.
type FileDescriptor struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	ByteSize int64  `json:"size"`
	FileID   string `json:"fileId"`
}

// Chunk is one compressed, sequence-numbered slice of a file.
// Name and MimeType are only stamped on the first chunk.
type Chunk struct {
	FileID          string `json:"fileId"`
	SequenceNumber  int    `json:"sequenceNumber"`
	Payload         []byte `json:"payload"`
	RawByteLength   int    `json:"rawByteLength"`
	IsFinal         bool   `json:"isFinal"`
	TotalChunks     int    `json:"totalChunks"`
	PercentComplete int    `json:"percentComplete"`
	Name            string `json:"name,omitempty"`
	MimeType        string `json:"type,omitempty"`
	ByteSize        int64  `json:"size,omitempty"`
}

// Acknowledgement is sent by a receiver for every absorbed relay chunk.
type Acknowledgement struct {
	FileID          string `json:"fileId"`
	SequenceNumber  int    `json:"sequenceNumber"`
	PercentComplete int    `json:"percentComplete"`
}

// Progress is reported for both directions while a file moves.
type Progress struct {
	FileID  string
	Name    string
	Percent int
	Done    bool
}

// Object is a fully reassembled file.
type Object struct {
	Descriptor FileDescriptor
	Data       []byte
}

// Source is a readable file handed to the scheduler.
type Source struct {
	Name     string
	MimeType string
	Size     int64
	Data     io.ReaderAt
	closer   io.Closer
}

// OpenSource opens a file on disk as a transfer source.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("source %s is a directory", path)
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &Source{
		Name:     name,
		MimeType: mimeType,
		Size:     info.Size(),
		Data:     f,
		closer:   f,
	}, nil
}

// NewSource wraps an in-memory buffer.
func NewSource(name, mimeType string, data []byte) *Source {
	return &Source{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     bytes.NewReader(data),
	}
}

// Reader returns a fresh reader over the whole source.
func (s *Source) Reader() io.Reader {
	return io.NewSectionReader(s.Data, 0, s.Size)
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
