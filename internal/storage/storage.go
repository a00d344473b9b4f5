// Package storage defines the diagnostic journal: an append-only record of what each
// boot printed and did. The journal is never read back into the associative store.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/holokernel/internal/models"
)

// ErrSessionNotFound is returned by GetSession for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Journal defines journal persistence operations.
type Journal interface {
	// Sessions
	StartSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, offset, limit int) ([]*models.Session, error)

	// Events
	AppendEvent(ctx context.Context, e *models.JournalEvent) error
	BatchAppendEvents(ctx context.Context, events []*models.JournalEvent) error
	ListEvents(ctx context.Context, sessionID string, kind models.EventKind, offset, limit int) ([]*models.JournalEvent, error)

	// Stats
	CountEvents(ctx context.Context, sessionID string, kind models.EventKind) (int64, error)

	Close() error
}
