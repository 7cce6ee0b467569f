package tokencache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/systmms/tokenbroker/internal/logging"
	"github.com/systmms/tokenbroker/internal/secure"
)

const (
	keySize   = 32
	nonceSize = 24
)

// encryptedFileStore seals the blob with a key kept in the OS keychain.
type encryptedFileStore struct {
	mu       sync.Mutex
	path     string
	service  string
	keychain KeychainClient
	logger   *logging.Logger
	key      *secure.SecureBuffer
}

func newEncryptedFileStore(path, service string, keychain KeychainClient, logger *logging.Logger) *encryptedFileStore {
	return &encryptedFileStore{path: path, service: service, keychain: keychain, logger: logger}
}

func (s *encryptedFileStore) Name() string { return TierKeyring }

func (s *encryptedFileStore) keyAccount() string {
	return "cache-key:" + filepath.Base(s.path)
}

// loadKey returns the cache key, creating and storing one on first use.
func (s *encryptedFileStore) loadKey() (*[keySize]byte, error) {
	if s.key.IsEmpty() {
		raw, err := s.keychain.Query(s.service, s.keyAccount())
		switch {
		case errors.Is(err, ErrKeychainItemNotFound):
			fresh := make([]byte, keySize)
			if _, err := io.ReadFull(rand.Reader, fresh); err != nil {
				return nil, fmt.Errorf("generate cache key: %w", err)
			}
			encoded := base64.StdEncoding.EncodeToString(fresh)
			if err := s.keychain.Store(s.service, s.keyAccount(), []byte(encoded)); err != nil {
				return nil, &KeychainError{Op: "store", Service: s.service, Account: s.keyAccount(), Err: err}
			}
			raw = []byte(encoded)
		case err != nil:
			return nil, &KeychainError{Op: "query", Service: s.service, Account: s.keyAccount(), Err: err}
		}

		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil || len(decoded) != keySize {
			return nil, &KeychainError{Op: "query", Service: s.service, Account: s.keyAccount(), Err: errors.New("stored cache key is malformed")}
		}
		buf, err := secure.NewSecureBuffer(decoded)
		if err != nil {
			return nil, err
		}
		s.key = buf
	}

	b, err := s.key.Bytes()
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], b)
	for i := range b {
		b[i] = 0
	}
	return &key, nil
}

func (s *encryptedFileStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *encryptedFileStore) load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	key, err := s.loadKey()
	if err != nil {
		return nil, err
	}

	if len(sealed) < nonceSize {
		s.logger.Warn("Token cache at %s is truncated; starting empty", s.path)
		return nil, nil
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		s.logger.Warn("Token cache at %s cannot be decrypted with the stored key; starting empty", s.path)
		return nil, nil
	}
	return plain, nil
}

func (s *encryptedFileStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, data)
}

func (s *encryptedFileStore) save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := s.loadKey()
	if err != nil {
		return err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], data, &nonce, key)
	return writeFileAtomic(s.path, sealed)
}

func (s *encryptedFileStore) Modify(ctx context.Context, fn func([]byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return s.save(ctx, next)
}

func (s *encryptedFileStore) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.keychain.IsAvailable() {
		return ErrKeychainUnsupportedPlatform
	}
	if s.keychain.IsHeadless() {
		return ErrKeychainHeadless
	}
	if err := s.keychain.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadKey(); err != nil {
		return err
	}
	return probeDirectory(filepath.Dir(s.path))
}

func (s *encryptedFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(ctx, s.path)
}

// plainFileStore keeps the blob unencrypted in an owner-only file.
type plainFileStore struct {
	mu   sync.Mutex
	path string
}

func newPlainFileStore(path string) *plainFileStore {
	return &plainFileStore{path: path}
}

func (s *plainFileStore) Name() string { return TierFile }

func (s *plainFileStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *plainFileStore) load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	return data, nil
}

func (s *plainFileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.path, data)
}

func (s *plainFileStore) Modify(ctx context.Context, fn func([]byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, next)
}

func (s *plainFileStore) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return probeDirectory(filepath.Dir(s.path))
}

func (s *plainFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(ctx, s.path)
}

// writeFileAtomic replaces path with data through a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("restrict cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// probeDirectory checks that dir can hold a private file.
func probeDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func removeFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}
