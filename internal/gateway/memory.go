package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// MemoryGateway is an in-memory implementation of the StorageGateway
// interface. It models objects and folders as a flat table keyed by ID with
// a parent pointer, which is close enough to both Drive and S3 semantics
// for testing. Safe for concurrent use.
type MemoryGateway struct {
	// Clock stamps uploads and folder creations. Tests swap it for a stub
	// so staleness decisions are deterministic.
	Clock gdsync.Clock

	mu      sync.RWMutex
	nextID  int
	objects map[string]*memObject
}

type memObject struct {
	id       string
	name     string
	parent   string
	isFolder bool
	modified time.Time
	data     []byte
	meta     map[string]string
}

var _ gdsync.StorageGateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		Clock:   gdsync.RealClock{},
		objects: make(map[string]*memObject),
	}
}

// List returns the immediate children of folder.
func (m *MemoryGateway) List(_ context.Context, folder string) ([]gdsync.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []gdsync.Object
	for _, o := range m.objects {
		if o.parent != folder {
			continue
		}
		objects = append(objects, m.toObject(o))
	}
	return objects, nil
}

// Download writes the object's content to w.
func (m *MemoryGateway) Download(_ context.Context, id string, w io.Writer) error {
	m.mu.RLock()
	o, ok := m.objects[id]
	m.mu.RUnlock()

	if !ok || o.isFolder {
		return fmt.Errorf("object not found: %s", id)
	}
	if _, err := io.Copy(w, bytes.NewReader(o.data)); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

// Upload stores content under folder, overwriting an existing object of the
// same name in place.
func (m *MemoryGateway) Upload(_ context.Context, folder string, name string, r io.Reader, size int64, meta map[string]string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]string, len(meta))
	for k, v := range meta {
		copied[k] = v
	}

	if existing := m.findLocked(folder, name, false); existing != nil {
		existing.data = data
		existing.meta = copied
		existing.modified = m.Clock.Now()
		return existing.id, nil
	}

	o := &memObject{
		id:       m.newIDLocked(),
		name:     name,
		parent:   folder,
		modified: m.Clock.Now(),
		data:     data,
		meta:     copied,
	}
	m.objects[o.id] = o
	return o.id, nil
}

// Move reparents an object.
func (m *MemoryGateway) Move(_ context.Context, id string, fromFolder string, toFolder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("object not found: %s", id)
	}
	if o.parent != fromFolder {
		return fmt.Errorf("object %s is not in folder %s", id, fromFolder)
	}
	o.parent = toFolder
	return nil
}

// EnsureFolder returns the named child folder of parent, creating it when
// missing.
func (m *MemoryGateway) EnsureFolder(_ context.Context, parent string, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing := m.findLocked(parent, name, true); existing != nil {
		return existing.id, nil
	}

	o := &memObject{
		id:       m.newIDLocked(),
		name:     name,
		parent:   parent,
		isFolder: true,
		modified: m.Clock.Now(),
	}
	m.objects[o.id] = o
	return o.id, nil
}

// Put seeds an object directly with an explicit modification time. Returns
// the new object's ID. Intended for test setup.
func (m *MemoryGateway) Put(folder string, name string, data []byte, modified time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := &memObject{
		id:       m.newIDLocked(),
		name:     name,
		parent:   folder,
		modified: modified,
		data:     append([]byte(nil), data...),
	}
	m.objects[o.id] = o
	return o.id
}

// Find returns the non-folder object with the given name directly under
// folder.
func (m *MemoryGateway) Find(folder string, name string) (gdsync.Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o := m.findLocked(folder, name, false); o != nil {
		return m.toObject(o), true
	}
	return gdsync.Object{}, false
}

// Data returns a copy of the object's content.
func (m *MemoryGateway) Data(id string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// Meta returns the metadata attached to the object at upload time.
func (m *MemoryGateway) Meta(id string) (map[string]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[id]
	if !ok {
		return nil, false
	}
	copied := make(map[string]string, len(o.meta))
	for k, v := range o.meta {
		copied[k] = v
	}
	return copied, true
}

// Parent returns the folder an object currently sits in.
func (m *MemoryGateway) Parent(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objects[id]
	if !ok {
		return "", false
	}
	return o.parent, true
}

func (m *MemoryGateway) findLocked(folder string, name string, isFolder bool) *memObject {
	for _, o := range m.objects {
		if o.parent == folder && o.name == name && o.isFolder == isFolder {
			return o
		}
	}
	return nil
}

func (m *MemoryGateway) newIDLocked() string {
	m.nextID++
	return "obj-" + strconv.Itoa(m.nextID)
}

func (m *MemoryGateway) toObject(o *memObject) gdsync.Object {
	return gdsync.Object{
		ID:         o.id,
		Name:       o.name,
		Size:       int64(len(o.data)),
		ModifiedAt: o.modified,
		IsFolder:   o.isFolder,
	}
}
