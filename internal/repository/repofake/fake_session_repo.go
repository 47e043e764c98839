// Package repofake holds in-memory repositories for service tests.
package repofake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
)

var _ repository.SessionRepository = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	records map[string]*domain.SessionRecord // keyed by player id
	nextID  int64
	lock    sync.RWMutex
}

func NewFakeSessionRepo(records ...*domain.SessionRecord) *FakeSessionRepo {
	r := &FakeSessionRepo{records: make(map[string]*domain.SessionRecord)}
	for _, rec := range records {
		_ = r.Upsert(context.Background(), rec)
	}
	return r
}

func (r *FakeSessionRepo) Upsert(_ context.Context, record *domain.SessionRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := time.Now()
	rec := *record
	if rec.Status == "" {
		rec.Status = domain.SessionStatusNotAuthenticated
	}
	if existing, ok := r.records[rec.PlayerID]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		rec.ID = r.nextID
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[rec.PlayerID] = &rec

	record.ID = rec.ID
	record.Status = rec.Status
	return nil
}

func (r *FakeSessionRepo) GetByPlayerID(_ context.Context, playerID string) (*domain.SessionRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	rec, ok := r.records[playerID]
	if !ok {
		return nil, fmt.Errorf("session for player %s: %w", playerID, repository.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (r *FakeSessionRepo) list(keep func(*domain.SessionRecord) bool) []*domain.SessionRecord {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var out []*domain.SessionRecord
	for _, rec := range r.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *FakeSessionRepo) ListByOwner(_ context.Context, ownerUserID string) ([]*domain.SessionRecord, error) {
	return r.list(func(rec *domain.SessionRecord) bool {
		return rec.OwnerUserID == ownerUserID
	}), nil
}

func (r *FakeSessionRepo) ListValidExcludingOwner(_ context.Context, ownerUserID string) ([]*domain.SessionRecord, error) {
	return r.list(func(rec *domain.SessionRecord) bool {
		return rec.Status == domain.SessionStatusValid && rec.OwnerUserID != ownerUserID && rec.SessionToken != ""
	}), nil
}

func (r *FakeSessionRepo) ListValid(_ context.Context) ([]*domain.SessionRecord, error) {
	return r.list(func(rec *domain.SessionRecord) bool {
		return rec.Status == domain.SessionStatusValid
	}), nil
}

func (r *FakeSessionRepo) update(playerID string, fn func(*domain.SessionRecord)) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	rec, ok := r.records[playerID]
	if !ok {
		return fmt.Errorf("session for player %s: %w", playerID, repository.ErrNotFound)
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *FakeSessionRepo) UpdateStatus(_ context.Context, playerID string, status domain.SessionStatus) error {
	return r.update(playerID, func(rec *domain.SessionRecord) { rec.Status = status })
}

func (r *FakeSessionRepo) UpdateAccessToken(_ context.Context, playerID, accessToken string) error {
	return r.update(playerID, func(rec *domain.SessionRecord) { rec.AccessToken = accessToken })
}

// Status returns the stored status of a player, or "" when unknown.
func (r *FakeSessionRepo) Status(playerID string) domain.SessionStatus {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if rec, ok := r.records[playerID]; ok {
		return rec.Status
	}
	return ""
}
