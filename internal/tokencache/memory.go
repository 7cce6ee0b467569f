package tokencache

import (
	"context"
	"sync"

	"github.com/systmms/tokenbroker/internal/identity"
	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/secure"
)

// MemoryProvider keeps the blob in locked memory for the life of the process.
type MemoryProvider struct {
	*base
	mem *memoryStore
}

// NewMemoryProvider returns an empty in-memory provider.
func NewMemoryProvider(factory identity.Factory, logger *logging.Logger) *MemoryProvider {
	mem := &memoryStore{}
	return &MemoryProvider{
		base: newBase(mem, PersistenceOptions{}, factory, logger),
		mem:  mem,
	}
}

// Close wipes the blob.
func (p *MemoryProvider) Close() {
	_ = p.mem.Clear(context.Background())
}

type memoryStore struct {
	mu   sync.RWMutex
	blob *secure.SecureBuffer
}

func (m *memoryStore) Name() string { return TierMemory }

func (m *memoryStore) Load(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.blob.IsEmpty() {
		return nil, nil
	}
	return m.blob.Bytes()
}

func (m *memoryStore) Save(_ context.Context, data []byte) error {
	next, err := secure.NewSecureBuffer(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.blob
	m.blob = next
	m.mu.Unlock()
	prev.Destroy()
	return nil
}

func (m *memoryStore) Modify(_ context.Context, fn func([]byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if !m.blob.IsEmpty() {
		b, err := m.blob.Bytes()
		if err != nil {
			return err
		}
		current = b
	}
	data, err := fn(current)
	if err != nil {
		return err
	}
	next, err := secure.NewSecureBuffer(data)
	if err != nil {
		return err
	}
	m.blob.Destroy()
	m.blob = next
	return nil
}

func (m *memoryStore) Verify(_ context.Context) error { return nil }

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob.Destroy()
	m.blob = nil
	return nil
}
