package transfer

import (
	"sync"

	"github.com/homeboy445/fileSharerApp/pkg/logger"
)

// Registry owns the in-flight receivers of a session, keyed by file id.
// A receiver is created on the first chunk of a file and dropped once the
// file is complete; completed objects stay until released.
type Registry struct {
	mu        sync.Mutex
	expected  map[string]FileDescriptor
	active    map[string]*Receiver
	completed map[string]*Object
}

func NewRegistry() *Registry {
	return &Registry{
		expected:  make(map[string]FileDescriptor),
		active:    make(map[string]*Receiver),
		completed: make(map[string]*Object),
	}
}

// Expect records a descriptor announced ahead of the chunks.
func (r *Registry) Expect(desc FileDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expected[desc.FileID] = desc
}

// Absorb routes c to its receiver and returns the object once the file
// completes, along with the receiver's percent. Chunks for a file that already completed are ignored.
func (r *Registry) Absorb(c Chunk) (*Object, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.completed[c.FileID]; ok {
		return nil, 100, nil
	}
	recv, ok := r.active[c.FileID]
	if !ok {
		desc, known := r.expected[c.FileID]
		if !known {
			desc = FileDescriptor{FileID: c.FileID, Name: c.Name, MimeType: c.MimeType, ByteSize: c.ByteSize}
		}
		recv = NewReceiver(desc)
		r.active[c.FileID] = recv
		logger.Log.Debug("Receiver created", "file_id", c.FileID, "name", desc.Name)
	}
	done, err := recv.Absorb(c)
	if err != nil {
		delete(r.active, c.FileID)
		return nil, 0, err
	}
	if !done {
		return nil, recv.Percent(), nil
	}
	obj, err := recv.Assembled()
	if err != nil {
		return nil, 0, err
	}
	delete(r.active, c.FileID)
	r.completed[c.FileID] = obj
	logger.Log.Info("File reassembled", "file_id", c.FileID, "name", obj.Descriptor.Name, "bytes", len(obj.Data))
	return obj, 100, nil
}

func (r *Registry) Object(fileID string) (*Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.completed[fileID]
	return obj, ok
}

// Release drops a completed object.
func (r *Registry) Release(fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.completed, fileID)
	delete(r.expected, fileID)
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
