package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Store persists sessions keyed by an opaque session ID. Every Save refreshes
// the session's expiry.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, id string, s *Session) error
	Delete(ctx context.Context, id string) error
}
