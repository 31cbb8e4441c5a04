package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is opened.
var ErrDestroyed = errors.New("secure buffer has been destroyed")

// SecureBuffer holds a secret inside a memguard enclave.
type SecureBuffer struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewSecureBuffer moves data into an enclave. memguard wipes the source slice.
func NewSecureBuffer(data []byte) *SecureBuffer {
	if len(data) == 0 {
		// memguard refuses empty enclaves
		return &SecureBuffer{}
	}
	return &SecureBuffer{enclave: memguard.NewEnclave(data)}
}

// NewSecureString copies s into an enclave.
func NewSecureString(s string) *SecureBuffer {
	return NewSecureBuffer([]byte(s))
}

// Open decrypts the enclave into a locked buffer. Callers must Destroy the result.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Reveal returns a copy of the plaintext in ordinary Go memory, so use it
// immediately and drop it. The locked buffer is destroyed before returning.
func (s *SecureBuffer) Reveal() (string, error) {
	s.mu.RLock()
	empty := s.enclave == nil && !s.destroyed
	s.mu.RUnlock()
	if empty {
		return "", nil
	}

	locked, err := s.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. Safe to call more than once.
func (s *SecureBuffer) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

// String keeps the buffer out of logs and error messages.
func (s *SecureBuffer) String() string {
	return "[REDACTED]"
}

// Purge wipes every memguard-managed region and rotates the session key.
// Enclaves created before the call can no longer be opened.
func Purge() {
	memguard.Purge()
}
