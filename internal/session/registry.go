package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/payment"
	"github.com/fairyhunter13/pos-session-service/internal/pos"
	"github.com/fairyhunter13/pos-session-service/internal/store"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultClientID is used when a caller does not identify itself.
const DefaultClientID = "default"

// StorageKey returns the key under which a client's page state is stored.
func StorageKey(preset pos.Preset, clientID string) string {
	if clientID == "" {
		clientID = DefaultClientID
	}
	return clientID + "/" + preset.StorageKey
}

// Registry owns the live sessions. The least recently used session is
// closed when the registry is full. Persisted pages have at most one live
// session per storage key; opening the page again returns it.
type Registry struct {
	store   store.Store
	saver   Saver
	payment payment.Processor
	cache   *lru.Cache[string, *Session]
	group   singleflight.Group

	mu   sync.Mutex
	live map[string]*Session
}

// NewRegistry returns a registry holding up to size live sessions.
func NewRegistry(size int, st store.Store, saver Saver, proc payment.Processor) (*Registry, error) {
	if size <= 0 {
		size = 1
	}
	r := &Registry{store: st, saver: saver, payment: proc, live: make(map[string]*Session)}
	cache, err := lru.NewWithEvict[string, *Session](size, r.onEvict)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

func (r *Registry) onEvict(id string, s *Session) {
	s.Close()
	if s.StorageKey != "" {
		r.mu.Lock()
		if cur, ok := r.live[s.StorageKey]; ok && cur == s {
			delete(r.live, s.StorageKey)
		}
		r.mu.Unlock()
	}
	obs.Logger.Info("session_closed", "session_id", id, "preset", s.Preset.Name, "client_id", s.ClientID)
}

// Open mounts a page for clientID. Persisted presets load their stored
// state; unreadable or malformed state falls back to the defaults.
func (r *Registry) Open(ctx context.Context, preset pos.Preset, clientID string) (*Session, error) {
	if clientID == "" {
		clientID = DefaultClientID
	}
	if !preset.Persist {
		s := newSession(uuid.NewString(), preset, clientID, "", pos.NewState(preset), 0, nil, r.payment)
		r.cache.Add(s.ID, s)
		obs.L(ctx).Info("session_opened", "session_id", s.ID, "preset", preset.Name, "client_id", clientID)
		return s, nil
	}

	key := StorageKey(preset, clientID)
	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.Lock()
		if s, ok := r.live[key]; ok && s.ctx.Err() == nil {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		state, rev := r.load(ctx, preset, key)
		s := newSession(uuid.NewString(), preset, clientID, key, state, rev, r.saver, r.payment)
		r.mu.Lock()
		r.live[key] = s
		r.mu.Unlock()
		r.cache.Add(s.ID, s)
		obs.L(ctx).Info("session_opened", "session_id", s.ID, "preset", preset.Name, "client_id", clientID, "key", key, "revision", rev)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(*Session)
	r.cache.Get(s.ID)
	return s, nil
}

func (r *Registry) load(ctx context.Context, preset pos.Preset, key string) (*pos.State, uint64) {
	data, ok := r.saver.Pending(key)
	var err error
	if !ok {
		data, ok, err = r.store.Load(ctx, key)
	}
	if err != nil {
		obs.L(ctx).Warn("state_load_failed", "key", key, "error", err)
		return pos.NewState(preset), 0
	}
	if !ok {
		return pos.NewState(preset), 0
	}
	snap, err := pos.DecodeSnapshot(data)
	if err == nil {
		var state *pos.State
		if state, err = pos.Restore(preset, snap); err == nil {
			return state, snap.Revision
		}
	}
	obs.L(ctx).Warn("state_corrupt", "key", key, "error", err)
	return pos.NewState(preset), 0
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close unmounts a session.
func (r *Registry) Close(id string) error {
	if !r.cache.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// CloseAll unmounts every session.
func (r *Registry) CloseAll() { r.cache.Purge() }

// Len returns the number of live sessions.
func (r *Registry) Len() int { return r.cache.Len() }
