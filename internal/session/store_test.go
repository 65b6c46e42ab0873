package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func object(name, data string) *transfer.Object {
	return &transfer.Object{
		Descriptor: transfer.FileDescriptor{Name: name, ByteSize: int64(len(data)), FileID: name},
		Data:       []byte(data),
	}
}

func TestStoreSaveDeduplicates(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	var paths []string
	for _, body := range []string{"one", "two", "three"} {
		p, err := store.Save(object("report.pdf", body))
		require.NoError(t, err)
		paths = append(paths, p)
	}

	assert.Equal(t, []string{
		filepath.Join(dir, "report.pdf"),
		filepath.Join(dir, "report (1).pdf"),
		filepath.Join(dir, "report (2).pdf"),
	}, paths)
	got, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"plain.txt":           "plain.txt",
		"../../etc/passwd":    "passwd",
		`..\..\windows\x.ini`: "x.ini",
		"/abs/path/file":      "file",
		"":                    "download",
		"..":                  "download",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}

func TestStoreSaveStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	p, err := NewStore(dir).Save(object("../escape.txt", "x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), p)
}

func TestEnsureSpace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "downloads")
	store := NewStore(dir)

	require.NoError(t, store.EnsureSpace(context.Background(), 1))
	assert.DirExists(t, dir)

	err := store.EnsureSpace(context.Background(), 1<<62)
	assert.ErrorIs(t, err, transfer.ErrInsufficientSpace)
}
