// Package idempotency replays the first completed response for a repeated
// Idempotency-Key so a retried booking never books twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/cache"
)

const (
	DefaultTTL = 24 * time.Hour
	// pendingTTL bounds how long a crashed request can hold a key.
	pendingTTL = 2 * time.Minute
)

var (
	ErrInProgress = errors.New("idempotency: request with this key is still in progress")
	ErrKeyReused  = errors.New("idempotency: key reused with a different request")
)

type Record struct {
	Done        bool   `json:"done"`
	Fingerprint string `json:"fingerprint"`
	StatusCode  int    `json:"status_code,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: c, ttl: ttl}
}

func cacheKey(scope, key string) string { return "idem:" + scope + ":" + key }

// Begin claims key for a new request. When the key already finished with the
// same fingerprint, the stored record is returned for replay and claimed is false.
func (s *Store) Begin(ctx context.Context, scope, key, fingerprint string) (rec *Record, claimed bool, err error) {
	pending, err := json.Marshal(Record{Fingerprint: fingerprint})
	if err != nil {
		return nil, false, err
	}
	ok, err := s.cache.SetNX(ctx, cacheKey(scope, key), pending, pendingTTL)
	if err != nil {
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, found, err := s.cache.Get(ctx, cacheKey(scope, key))
	if err != nil {
		return nil, false, fmt.Errorf("read idempotency key: %w", err)
	}
	if !found {
		// Expired between SETNX and GET; let the caller retry.
		return nil, false, ErrInProgress
	}
	var existing Record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	if existing.Fingerprint != fingerprint {
		return nil, false, ErrKeyReused
	}
	if !existing.Done {
		return nil, false, ErrInProgress
	}
	return &existing, false, nil
}

// Complete stores the final response for replay.
func (s *Store) Complete(ctx context.Context, scope, key, fingerprint string, status int, body []byte) error {
	raw, err := json.Marshal(Record{Done: true, Fingerprint: fingerprint, StatusCode: status, Body: body})
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey(scope, key), raw, s.ttl)
}

// Release drops a claimed key so the client may retry, used when the request
// failed for reasons worth retrying.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	return s.cache.Delete(ctx, cacheKey(scope, key))
}
