// Package codec compresses and decompresses individual chunks with DEFLATE.
// Every call is independent so chunks of different files may be coded concurrently.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// ErrCorruptChunk is returned when a compressed payload cannot be inflated.
var ErrCorruptChunk = errors.New("corrupt chunk")

// Level is the DEFLATE level used by Encode.
const Level = flate.DefaultCompression

func Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, Level)
	if err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	return raw, nil
}
