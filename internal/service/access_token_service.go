package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

// AccessTokenDeriver performs the remote derivation of an access token.
type AccessTokenDeriver interface {
	RequestAccessToken(ctx context.Context, playerID, token, deviceID, serverID string) (string, error)
}

const DefaultAccessTokenTTL = 24 * time.Hour

// AccessTokenService memoizes access tokens per player id. Concurrent
// derivations for one player both run; the last write wins.
type AccessTokenService struct {
	deriver  AccessTokenDeriver
	sessions repository.SessionRepository
	store    cache.Store
	ttl      time.Duration
	metrics  *metrics.Metrics
}

func NewAccessTokenService(deriver AccessTokenDeriver, sessions repository.SessionRepository, store cache.Store, ttl time.Duration, m *metrics.Metrics) *AccessTokenService {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &AccessTokenService{deriver: deriver, sessions: sessions, store: store, ttl: ttl, metrics: m}
}

// GetAccessToken returns the cached token of playerID or derives a new one
// from sessionToken. Derivation failures are returned as is.
func (s *AccessTokenService) GetAccessToken(ctx context.Context, playerID, sessionToken, deviceID, serverID string) (string, error) {
	logger := log.With().Str("component", "access_token").Str("player_id", playerID).Logger()

	token, ok, err := s.store.Get(ctx, playerID)
	if err != nil {
		logger.Warn().Err(err).Msg("access token cache read failed")
	}
	if ok && token != "" {
		s.metrics.AccessTokenTotal.WithLabelValues("hit").Inc()
		return token, nil
	}

	token, err = s.deriver.RequestAccessToken(ctx, playerID, sessionToken, deviceID, serverID)
	if err != nil {
		s.metrics.AccessTokenTotal.WithLabelValues("error").Inc()
		return "", err
	}
	s.metrics.AccessTokenTotal.WithLabelValues("derived").Inc()

	if err := s.store.Set(ctx, playerID, token, s.ttl); err != nil {
		logger.Warn().Err(err).Msg("access token cache write failed")
	}
	s.writeBack(ctx, playerID, sessionToken, token)
	return token, nil
}

// Remember caches a token obtained outside GetAccessToken, such as at login.
func (s *AccessTokenService) Remember(ctx context.Context, playerID, token string) error {
	if err := s.store.Set(ctx, playerID, token, s.ttl); err != nil {
		return fmt.Errorf("failed to cache access token for player %s: %w", playerID, err)
	}
	return nil
}

// Invalidate drops the cached token of a player.
func (s *AccessTokenService) Invalidate(ctx context.Context, playerID string) error {
	if err := s.store.Delete(ctx, playerID); err != nil {
		return fmt.Errorf("failed to invalidate access token for player %s: %w", playerID, err)
	}
	return nil
}

// writeBack stores the token on the player's own session record, when the
// token was derived from that record's session.
func (s *AccessTokenService) writeBack(ctx context.Context, playerID, sessionToken, token string) {
	if s.sessions == nil {
		return
	}
	record, err := s.sessions.GetByPlayerID(ctx, playerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("component", "access_token").Str("player_id", playerID).Msg("failed to load session for write back")
		}
		return
	}
	if record.SessionToken != sessionToken || record.AccessToken == token {
		return
	}
	if err := s.sessions.UpdateAccessToken(ctx, playerID, token); err != nil {
		log.Warn().Err(err).Str("component", "access_token").Str("player_id", playerID).Msg("failed to store access token")
	}
}

// readCredential builds the credential for reading playerID with session.
// A session of another player needs an access token derived for playerID.
func readCredential(ctx context.Context, tokens AccessTokenProvider, playerID string, session *ResolvedSession) (domain.Credential, error) {
	cred := session.CredentialFor(playerID)
	if session.Record.PlayerID == playerID {
		return cred, nil
	}

	token, err := tokens.GetAccessToken(ctx, playerID, cred.SessionToken, cred.DeviceID, "")
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to get access token for player %s: %w", playerID, err)
	}
	cred.AccessToken = token
	return cred, nil
}

// rejectedBorrowed reports whether err is a login failure of a session
// borrowed to read playerID. The access token cached for playerID was derived
// from that session.
func rejectedBorrowed(playerID string, session *ResolvedSession, err error) bool {
	var loginErr *domain.LoginStatusError
	return session.Record.PlayerID != playerID && errors.As(err, &loginErr)
}

func forgetAccessToken(ctx context.Context, tokens AccessTokenProvider, playerID string) {
	if err := tokens.Invalidate(context.WithoutCancel(ctx), playerID); err != nil {
		log.Warn().Err(err).Str("component", "access_token").Str("player_id", playerID).Msg("failed to drop access token")
	}
}
