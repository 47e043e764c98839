package repository

import (
	"context"
	"errors"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

// ErrNotFound is wrapped by every repository lookup that finds no row.
var ErrNotFound = errors.New("not found")

type SessionRepository interface {
	// Upsert creates the record or replaces the one with the same player id.
	Upsert(ctx context.Context, record *domain.SessionRecord) error
	GetByPlayerID(ctx context.Context, playerID string) (*domain.SessionRecord, error)
	// ListByOwner returns every record bound by a chat user, oldest first.
	ListByOwner(ctx context.Context, ownerUserID string) ([]*domain.SessionRecord, error)
	// ListValidExcludingOwner returns VALID records bound by any other user.
	ListValidExcludingOwner(ctx context.Context, ownerUserID string) ([]*domain.SessionRecord, error)
	ListValid(ctx context.Context) ([]*domain.SessionRecord, error)
	UpdateStatus(ctx context.Context, playerID string, status domain.SessionStatus) error
	UpdateAccessToken(ctx context.Context, playerID, accessToken string) error
}
