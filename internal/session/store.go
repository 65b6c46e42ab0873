package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/homeboy445/fileSharerApp/internal/transfer"
	"github.com/homeboy445/fileSharerApp/pkg/logger"
	"github.com/shirou/gopsutil/v3/disk"
)

const maxDuplicateNames = 1000

// Store writes assembled files into a download directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// EnsureSpace creates the directory and checks it can hold need bytes.
func (s *Store) EnsureSpace(ctx context.Context, need int64) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	usage, err := disk.UsageWithContext(ctx, s.dir)
	if err != nil {
		logger.Log.Warn("Could not read disk usage, skipping space check", "dir", s.dir, "err", err)
		return nil
	}
	if need > 0 && usage.Free < uint64(need) {
		return fmt.Errorf("need %s, %s free in %s: %w",
			humanize.IBytes(uint64(need)), humanize.IBytes(usage.Free), s.dir, transfer.ErrInsufficientSpace)
	}
	return nil
}

// Save writes obj under its sanitised name, adding " (n)" before the
// extension when the name is taken. It returns the path written.
func (s *Store) Save(obj *transfer.Object) (string, error) {
	name := sanitizeName(obj.Descriptor.Name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxDuplicateNames; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(obj.Data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		logger.Log.Info("💾 File saved", "path", path, "size", humanize.IBytes(uint64(len(obj.Data))))
		return path, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", name, s.dir)
}

// sanitizeName keeps only the final path element of a remote name.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	switch name {
	case "", ".", "..", "/":
		return "download"
	}
	return name
}
