package quote

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/fairyhunter13/pos-session-service/internal/obs"
)

// Service keeps the quote currently on display.
type Service struct {
	client *Client
	maxID  int
	pick   func(n int) int

	mu      sync.RWMutex
	current Quote
	has     bool
}

// NewService picks quote ids uniformly in [1, maxID].
func NewService(client *Client, maxID int) *Service {
	if maxID < 1 {
		maxID = 1
	}
	return &Service{client: client, maxID: maxID, pick: rand.IntN}
}

// Current returns the quote on display, if one was ever fetched.
func (s *Service) Current() (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.has
}

// Refresh fetches a random quote and, when lang is set and not English,
// translates it. A failed fetch is logged and the previous quote is kept
// and returned along with the error. A failed translation keeps the English
// text.
func (s *Service) Refresh(ctx context.Context, lang string) (Quote, error) {
	id := s.pick(s.maxID) + 1
	q, err := s.client.Fetch(ctx, id)
	if err != nil {
		obs.L(ctx).Warn("quote_fetch_failed", "quote_id", id, "error", err)
		prev, _ := s.Current()
		return prev, err
	}
	if lang != "" && lang != "en" {
		text, err := s.client.Translate(ctx, q.Text, lang)
		if err != nil {
			obs.L(ctx).Warn("quote_translate_failed", "quote_id", id, "lang", lang, "error", err)
		} else {
			q.Translated = text
			q.Lang = lang
		}
	}
	s.mu.Lock()
	s.current = q
	s.has = true
	s.mu.Unlock()
	return q, nil
}
