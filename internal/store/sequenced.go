package store

import (
	"context"
	"sync"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("store")

type keyState struct {
	mu           sync.Mutex
	lastSequence uint64
}

// Sequenced writes save requests to a backend with last-write-wins per key:
// a request whose sequence is not newer than the last one written for its
// key is dropped.
type Sequenced struct {
	backend Store

	mu   sync.Mutex
	keys map[string]*keyState
}

func NewSequenced(backend Store) *Sequenced {
	return &Sequenced{backend: backend, keys: make(map[string]*keyState)}
}

// Backend returns the wrapped store.
func (s *Sequenced) Backend() Store { return s.backend }

func (s *Sequenced) state(key string) *keyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks, ok := s.keys[key]
	if !ok {
		ks = &keyState{}
		s.keys[key] = ks
	}
	return ks
}

// Apply writes req unless a newer write for the same key already landed.
// It reports whether the backend was written.
func (s *Sequenced) Apply(ctx context.Context, req model.SaveRequest) (bool, error) {
	if req.Key == "" {
		return false, nil
	}
	ks := s.state(req.Key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if req.Sequence <= ks.lastSequence {
		return false, nil
	}
	ctx, span := tracer.Start(ctx, "store.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("store.key", req.Key),
		attribute.Int64("store.sequence", int64(req.Sequence)),
		attribute.Int("store.bytes", len(req.Data)),
	)
	if err := s.backend.Save(ctx, req.Key, req.Data); err != nil {
		span.RecordError(err)
		return false, err
	}
	ks.lastSequence = req.Sequence
	return true, nil
}

// LastSequence returns the sequence of the last write applied for key.
func (s *Sequenced) LastSequence(key string) uint64 {
	ks := s.state(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.lastSequence
}
