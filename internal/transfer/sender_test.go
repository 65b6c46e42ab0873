package transfer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/homeboy445/fileSharerApp/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func drain(t *testing.T, s *Sender) []Chunk {
	t.Helper()
	var chunks []Chunk
	for {
		c, ok, err := s.NextChunk()
		require.NoError(t, err)
		if !ok {
			return chunks
		}
		chunks = append(chunks, c)
	}
}

func TestSenderChunksOneMebibyte(t *testing.T) {
	data := randomBytes(t, 1<<20, 1)
	s, err := NewSender(NewSource("one.bin", "application/octet-stream", data), 100*1024, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, s.TotalChunks())

	chunks := drain(t, s)
	require.Len(t, chunks, 11)
	assert.True(t, s.Exhausted())

	var rebuilt bytes.Buffer
	last := 0
	for i, c := range chunks {
		assert.Equal(t, i+1, c.SequenceNumber)
		assert.Equal(t, 11, c.TotalChunks)
		assert.Equal(t, s.FileInfo().FileID, c.FileID)
		assert.Equal(t, i == 10, c.IsFinal)
		assert.GreaterOrEqual(t, c.PercentComplete, last)
		last = c.PercentComplete
		raw, err := codec.Decode(c.Payload)
		require.NoError(t, err)
		assert.Len(t, raw, c.RawByteLength)
		rebuilt.Write(raw)
	}
	assert.Equal(t, 100, chunks[10].PercentComplete)
	assert.Equal(t, 24*1024, chunks[10].RawByteLength)
	assert.Equal(t, data, rebuilt.Bytes())

	assert.Equal(t, "one.bin", chunks[0].Name)
	assert.Empty(t, chunks[1].Name)
}

func TestSenderPercentBelowHundredUntilFinal(t *testing.T) {
	s, err := NewSender(NewSource("a", "", randomBytes(t, 1000, 2)), 300, 0)
	require.NoError(t, err)
	chunks := drain(t, s)
	require.Len(t, chunks, 4)
	assert.Equal(t, []int{30, 60, 90, 100}, []int{
		chunks[0].PercentComplete, chunks[1].PercentComplete,
		chunks[2].PercentComplete, chunks[3].PercentComplete,
	})
}

func TestSenderEmptyFile(t *testing.T) {
	s, err := NewSender(NewSource("empty.txt", "text/plain", nil), 1024, 0)
	require.NoError(t, err)
	chunks := drain(t, s)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsFinal)
	assert.Equal(t, 1, chunks[0].TotalChunks)
	assert.Equal(t, 100, chunks[0].PercentComplete)
	assert.Zero(t, chunks[0].RawByteLength)
}

func TestSenderRejectsOversizedSource(t *testing.T) {
	_, err := NewSender(NewSource("big", "", make([]byte, 2048)), 512, 1024)
	require.ErrorIs(t, err, ErrSizeLimitExceeded)
}

func TestSenderUniqueFileIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s, err := NewSender(NewSource("x", "", []byte("x")), 10, 0)
		require.NoError(t, err)
		_, dup := seen[s.FileInfo().FileID]
		require.False(t, dup)
		seen[s.FileInfo().FileID] = struct{}{}
	}
}

func TestSenderIsNotRewindable(t *testing.T) {
	s, err := NewSender(NewSource("a", "", []byte("hello")), 2, 0)
	require.NoError(t, err)
	drain(t, s)
	_, ok, err := s.NextChunk()
	require.NoError(t, err)
	assert.False(t, ok)
}
