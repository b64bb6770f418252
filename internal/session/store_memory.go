package session

import (
	"context"
	"sync"

	"aiplatform/pkg/platform/sentinel"
)

// MemoryBackend keeps the persisted copy in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	saved *Session
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(_ context.Context) (Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.saved == nil {
		return Session{}, sentinel.ErrNotFound
	}
	return *b.saved, nil
}

func (b *MemoryBackend) Save(_ context.Context, s Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = &s
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = nil
	return nil
}
