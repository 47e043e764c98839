package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/internal/repository"
)

// SessionProbe asks the companion API whether a credential is still logged
// in for a player. Failures are *domain.LoginStatusError when classified.
type SessionProbe interface {
	Probe(ctx context.Context, playerID string, cred domain.Credential) error
}

// DefaultPoolSize bounds how many borrowed sessions one resolution probes.
const DefaultPoolSize = 100

// ResolvedSession is a session that currently authenticates. Owned is false
// when the session was borrowed from another user.
type ResolvedSession struct {
	Record *domain.SessionRecord
	Owned  bool
}

// CredentialFor builds the credential used to read targetPlayerID. The
// server id of the record only applies to its own player.
func (s *ResolvedSession) CredentialFor(targetPlayerID string) domain.Credential {
	cred := domain.Credential{
		SessionToken: s.Record.SessionToken,
		DeviceID:     s.Record.DeviceID,
	}
	if s.Record.PlayerID == targetPlayerID {
		cred.AccessToken = s.Record.AccessToken
		cred.ServerID = s.Record.ServerID
	}
	return cred
}

type CredentialService struct {
	sessions repository.SessionRepository
	probe    SessionProbe
	poolSize int
	metrics  *metrics.Metrics
	shuffle  func(n int, swap func(i, j int))
}

func NewCredentialService(sessions repository.SessionRepository, probe SessionProbe, poolSize int, m *metrics.Metrics) *CredentialService {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &CredentialService{
		sessions: sessions,
		probe:    probe,
		poolSize: poolSize,
		metrics:  m,
		shuffle:  rand.Shuffle,
	}
}

// Resolve finds a session able to read playerID on behalf of requestingUser.
// An exact record for playerID is trusted without probing. Otherwise the
// user's own records are probed in order, then a random sample of other
// users' VALID records. Dead sessions found on the way are marked INVALID.
func (s *CredentialService) Resolve(ctx context.Context, requestingUser, playerID string) (*ResolvedSession, error) {
	if playerID != "" {
		record, err := s.sessions.GetByPlayerID(ctx, playerID)
		switch {
		case err == nil && record.Usable():
			s.metrics.CredentialResolved.WithLabelValues("exact").Inc()
			return &ResolvedSession{Record: record, Owned: true}, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("failed to resolve session for player %s: %w", playerID, err)
		}
	}

	own, err := s.sessions.ListByOwner(ctx, requestingUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of user %s: %w", requestingUser, err)
	}
	record, err := s.firstAuthenticated(ctx, own)
	if err != nil {
		return nil, err
	}
	if record != nil {
		s.metrics.CredentialResolved.WithLabelValues("own").Inc()
		return &ResolvedSession{Record: record, Owned: true}, nil
	}

	pool, err := s.sessions.ListValidExcludingOwner(ctx, requestingUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list session pool: %w", err)
	}
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > s.poolSize {
		pool = pool[:s.poolSize]
	}
	record, err = s.firstAuthenticated(ctx, pool)
	if err != nil {
		return nil, err
	}
	if record != nil {
		s.metrics.CredentialResolved.WithLabelValues("pool").Inc()
		return &ResolvedSession{Record: record, Owned: false}, nil
	}

	s.metrics.CredentialResolved.WithLabelValues("none").Inc()
	return nil, domain.ErrNoUsableSession
}

// firstAuthenticated probes candidates in order and returns the first one
// that is logged in, or nil when none is. Only context errors abort the walk.
func (s *CredentialService) firstAuthenticated(ctx context.Context, candidates []*domain.SessionRecord) (*domain.SessionRecord, error) {
	for _, record := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !record.Usable() {
			continue
		}

		cred := domain.Credential{SessionToken: record.SessionToken, DeviceID: record.DeviceID, ServerID: record.ServerID}
		err := s.probe.Probe(ctx, record.PlayerID, cred)
		if err == nil {
			return record, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger := log.With().Str("component", "credential").Str("player_id", record.PlayerID).Logger()
		var loginErr *domain.LoginStatusError
		if errors.As(err, &loginErr) && loginErr.Invalidates() {
			if err := s.sessions.UpdateStatus(ctx, record.PlayerID, domain.SessionStatusInvalid); err != nil {
				logger.Error().Err(err).Msg("failed to invalidate session")
			}
			logger.Info().Str("status", string(loginErr.Status)).Msg("session invalidated")
			continue
		}
		logger.Warn().Err(err).Msg("session probe failed")
	}
	return nil, nil
}
