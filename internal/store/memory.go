package store

import (
	"context"
	"fmt"
	"sync"

	"example.com/healthsync/internal/domain"
)

// MemoryDatabase is an in-process Database used by tests and memory:// dry runs.
type MemoryDatabase struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

// NewMemoryDatabase constructs an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{collections: make(map[string]*MemoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (d *MemoryDatabase) Collection(name string) Collection {
	return d.Memory(name)
}

// Memory is Collection with the concrete type, for assertions in tests.
func (d *MemoryDatabase) Memory(name string) *MemoryCollection {
	d.mu.Lock()
	defer d.mu.Unlock()

	coll, ok := d.collections[name]
	if !ok {
		coll = &MemoryCollection{name: name}
		d.collections[name] = coll
	}
	return coll
}

// Close is a no-op.
func (d *MemoryDatabase) Close(context.Context) error { return nil }

// MemoryCollection keeps documents in insertion order.
type MemoryCollection struct {
	name string
	mu   sync.RWMutex
	docs []domain.Document
}

// Name returns the collection name.
func (c *MemoryCollection) Name() string { return c.name }

// Exists reports whether any stored document carries key.
func (c *MemoryCollection) Exists(_ context.Context, key domain.NaturalKey) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		if sameKey(doc.Key, key) {
			return true, nil
		}
	}
	return false, nil
}

// Insert appends doc without any uniqueness check.
func (c *MemoryCollection) Insert(_ context.Context, doc domain.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = append(c.docs, doc)
	return nil
}

// Documents returns a snapshot of the stored documents.
func (c *MemoryCollection) Documents() []domain.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]domain.Document(nil), c.docs...)
}

// Count returns how many documents carry key.
func (c *MemoryCollection) Count(key domain.NaturalKey) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, doc := range c.docs {
		if sameKey(doc.Key, key) {
			n++
		}
	}
	return n
}

// Keys are compared by their printed value so that an int64 activityId matches one
// decoded as another integer type.
func sameKey(a, b domain.NaturalKey) bool {
	return a.Field == b.Field && fmt.Sprint(a.Value) == fmt.Sprint(b.Value)
}
