package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"aiplatform/pkg/platform/sentinel"
)

const nonceSize = 24

// FileBackend stores the session as a JSON document with token and user keys,
// optionally sealed with NaCl secretbox.
type FileBackend struct {
	mu   sync.Mutex
	path string
	key  *[32]byte
}

// FileOption configures a FileBackend.
type FileOption func(*FileBackend)

// WithSealKey encrypts the file at rest.
func WithSealKey(key *[32]byte) FileOption {
	return func(b *FileBackend) {
		b.key = key
	}
}

func NewFileBackend(path string, opts ...FileOption) *FileBackend {
	b := &FileBackend{path: path}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParseSealKey accepts a 32-byte key as 64 hex characters or standard base64.
// An empty string yields a nil key.
func ParseSealKey(raw string) (*[32]byte, error) {
	if raw == "" {
		return nil, nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("session key is neither hex nor base64: %w", sentinel.ErrInvalid)
		}
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d: %w", len(decoded), sentinel.ErrInvalid)
	}
	var key [32]byte
	copy(key[:], decoded)
	return &key, nil
}

func (b *FileBackend) Load(_ context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session file: %w", err)
	}

	if b.key != nil {
		if len(data) < nonceSize {
			return Session{}, fmt.Errorf("sealed session too short: %w", sentinel.ErrCorrupt)
		}
		var nonce [nonceSize]byte
		copy(nonce[:], data[:nonceSize])
		opened, ok := secretbox.Open(nil, data[nonceSize:], &nonce, b.key)
		if !ok {
			return Session{}, fmt.Errorf("unseal session: %w", sentinel.ErrCorrupt)
		}
		data = opened
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", sentinel.ErrCorrupt)
	}
	if (s.Token == "") != (s.User == nil) {
		return Session{}, fmt.Errorf("partial session on disk: %w", sentinel.ErrCorrupt)
	}
	if s.Empty() {
		return Session{}, sentinel.ErrNotFound
	}
	return s, nil
}

func (b *FileBackend) Save(_ context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if b.key != nil {
		var nonce [nonceSize]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("generate nonce: %w", err)
		}
		data = secretbox.Seal(nonce[:], data, &nonce, b.key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
