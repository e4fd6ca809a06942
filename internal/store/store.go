// Package store persists page state blobs by storage key.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fairyhunter13/pos-session-service/internal/config"
)

// Store is a key-value store of opaque page state blobs.
type Store interface {
	// Load returns the blob for key. ok is false when nothing is stored.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Open selects the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, cfg.SQLiteDebug)
	case "redis":
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	case "mongo":
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Memory keeps blobs in process memory.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *Memory) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), data...)
	return nil
}

func (s *Memory) Ping(context.Context) error { return nil }

func (s *Memory) Close() error { return nil }
