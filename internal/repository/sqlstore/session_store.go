package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/jmoiron/sqlx"
)

const sessionColumns = `
	id, owner_user_id, player_id, server_id, session_token, access_token,
	device_id, platform, status, created_at, updated_at`

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a SQL backed session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Upsert inserts the record or replaces the credential of the same player
func (r *sessionRepository) Upsert(ctx context.Context, record *domain.SessionRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = domain.SessionStatusNotAuthenticated
	}

	query := `
		INSERT INTO session_records (
			owner_user_id, player_id, server_id, session_token, access_token,
			device_id, platform, status, created_at, updated_at
		) VALUES (
			:owner_user_id, :player_id, :server_id, :session_token, :access_token,
			:device_id, :platform, :status, :created_at, :updated_at
		)
		ON CONFLICT (player_id) DO UPDATE SET
			owner_user_id = excluded.owner_user_id,
			server_id = excluded.server_id,
			session_token = excluded.session_token,
			access_token = excluded.access_token,
			device_id = excluded.device_id,
			platform = excluded.platform,
			status = excluded.status,
			updated_at = excluded.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to upsert session for player %s: %w", record.PlayerID, err)
	}

	return nil
}

// GetByPlayerID retrieves the record bound to a player id
func (r *sessionRepository) GetByPlayerID(ctx context.Context, playerID string) (*domain.SessionRecord, error) {
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM session_records WHERE player_id = ?`)

	var record domain.SessionRecord
	if err := r.db.GetContext(ctx, &record, query, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for player %s: %w", playerID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session by player id: %w", err)
	}

	return &record, nil
}

// ListByOwner retrieves every record bound by a chat user
func (r *sessionRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]*domain.SessionRecord, error) {
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM session_records WHERE owner_user_id = ? ORDER BY id`)

	var records []*domain.SessionRecord
	if err := r.db.SelectContext(ctx, &records, query, ownerUserID); err != nil {
		return nil, fmt.Errorf("failed to list sessions by owner: %w", err)
	}

	return records, nil
}

// ListValidExcludingOwner retrieves the shared pool seen by a chat user
func (r *sessionRepository) ListValidExcludingOwner(ctx context.Context, ownerUserID string) ([]*domain.SessionRecord, error) {
	query := r.db.Rebind(`SELECT ` + sessionColumns + `
		FROM session_records
		WHERE status = ? AND owner_user_id <> ? AND session_token <> ''
		ORDER BY id`)

	var records []*domain.SessionRecord
	if err := r.db.SelectContext(ctx, &records, query, domain.SessionStatusValid, ownerUserID); err != nil {
		return nil, fmt.Errorf("failed to list pooled sessions: %w", err)
	}

	return records, nil
}

// ListValid retrieves every VALID record
func (r *sessionRepository) ListValid(ctx context.Context) ([]*domain.SessionRecord, error) {
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM session_records WHERE status = ? ORDER BY id`)

	var records []*domain.SessionRecord
	if err := r.db.SelectContext(ctx, &records, query, domain.SessionStatusValid); err != nil {
		return nil, fmt.Errorf("failed to list valid sessions: %w", err)
	}

	return records, nil
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, playerID string, status domain.SessionStatus) error {
	query := r.db.Rebind(`UPDATE session_records SET status = ?, updated_at = ? WHERE player_id = ?`)
	return r.updateOne(ctx, "status", playerID, query, status, time.Now().UTC(), playerID)
}

func (r *sessionRepository) UpdateAccessToken(ctx context.Context, playerID, accessToken string) error {
	query := r.db.Rebind(`UPDATE session_records SET access_token = ?, updated_at = ? WHERE player_id = ?`)
	return r.updateOne(ctx, "access token", playerID, query, accessToken, time.Now().UTC(), playerID)
}

func (r *sessionRepository) updateOne(ctx context.Context, what, playerID, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", what, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("session for player %s: %w", playerID, repository.ErrNotFound)
	}

	return nil
}
