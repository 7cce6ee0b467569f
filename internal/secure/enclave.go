package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer provides memory-safe storage for sensitive data.
// An empty buffer holds no enclave; memguard refuses zero-length enclaves.
type SecureBuffer struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	size    int
	// destroyed allows idempotent Destroy calls and prevents reuse
	destroyed bool
}

// NewSecureBuffer creates a protected buffer from secret bytes.
// memguard wipes its input, so the caller's slice is copied first and left
// intact; callers holding the only copy should zero it themselves.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	b := &SecureBuffer{size: len(data)}
	if len(data) == 0 {
		return b, nil
	}
	src := make([]byte, len(data))
	copy(src, data)
	b.enclave = memguard.NewEnclave(src)
	return b, nil
}

// FromString seals a string value.
func FromString(s string) *SecureBuffer {
	b, _ := NewSecureBuffer([]byte(s))
	return b
}

// Len returns the plaintext length.
func (s *SecureBuffer) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return 0
	}
	return s.size
}

// IsEmpty reports whether the buffer holds no data. A nil buffer is empty.
func (s *SecureBuffer) IsEmpty() bool {
	return s.Len() == 0
}

// Open decrypts the protected data into a locked buffer.
// The caller MUST call Destroy() on the returned LockedBuffer when done.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	if s == nil {
		return memguard.NewBuffer(0), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Bytes returns a heap copy of the plaintext.
func (s *SecureBuffer) Bytes() ([]byte, error) {
	locked, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, len(locked.Bytes()))
	copy(out, locked.Bytes())
	return out, nil
}

// String returns the plaintext as a string.
func (s *SecureBuffer) String() (string, error) {
	b, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Destroy marks the buffer as destroyed. It is idempotent; after Destroy the
// buffer reads as empty. Use memguard.Purge at exit for full cleanup.
func (s *SecureBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
