package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
)

// AccountAPI is the part of the companion API that reads and maintains a
// single account.
type AccountAPI interface {
	GetBaseInfo(ctx context.Context, playerID string, cred domain.Credential) (*domain.AccountInfo, error)
	GetTowerData(ctx context.Context, playerID string, cred domain.Credential) (*domain.TowerData, error)
	RefreshLogin(ctx context.Context, playerID string, cred domain.Credential) error
	RefreshCalculator(ctx context.Context, playerID string, cred domain.Credential) error
}

type AccountService struct {
	sessions    repository.SessionRepository
	credentials CredentialResolver
	tokens      AccessTokenProvider
	api         AccountAPI
}

func NewAccountService(sessions repository.SessionRepository, credentials CredentialResolver, tokens AccessTokenProvider, api AccountAPI) *AccountService {
	return &AccountService{
		sessions:    sessions,
		credentials: credentials,
		tokens:      tokens,
		api:         api,
	}
}

// BaseInfo reads the public profile of playerID on behalf of userID.
func (s *AccountService) BaseInfo(ctx context.Context, userID, playerID string) (*domain.AccountInfo, error) {
	ctx, span := tracer.Start(ctx, "AccountService.BaseInfo", trace.WithAttributes(attribute.String("player_id", playerID)))
	defer span.End()

	return readAccount(ctx, s, userID, playerID, s.api.GetBaseInfo)
}

// Tower reads the tower progress of playerID on behalf of userID.
func (s *AccountService) Tower(ctx context.Context, userID, playerID string) (*domain.TowerData, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Tower", trace.WithAttributes(attribute.String("player_id", playerID)))
	defer span.End()

	return readAccount(ctx, s, userID, playerID, s.api.GetTowerData)
}

func readAccount[T any](ctx context.Context, s *AccountService, userID, playerID string, read func(context.Context, string, domain.Credential) (T, error)) (T, error) {
	var zero T
	session, err := s.credentials.Resolve(ctx, userID, playerID)
	if err != nil {
		return zero, err
	}
	cred, err := readCredential(ctx, s.tokens, playerID, session)
	if err != nil {
		return zero, err
	}

	out, err := read(ctx, playerID, cred)
	if err != nil {
		if rejectedBorrowed(playerID, session, err) {
			forgetAccessToken(ctx, s.tokens, playerID)
		}
		return zero, err
	}
	return out, nil
}

// RefreshLogin renews the login of an account bound by userID.
func (s *AccountService) RefreshLogin(ctx context.Context, userID, playerID string) error {
	record, err := s.ownRecord(ctx, userID, playerID)
	if err != nil {
		return err
	}
	return s.api.RefreshLogin(ctx, playerID, ownCredential(record))
}

// RefreshCalculator asks the companion calculator to resync an account bound
// by userID.
func (s *AccountService) RefreshCalculator(ctx context.Context, userID, playerID string) error {
	record, err := s.ownRecord(ctx, userID, playerID)
	if err != nil {
		return err
	}
	return s.api.RefreshCalculator(ctx, playerID, ownCredential(record))
}

// KeepAlive renews the login of every VALID session and returns how many
// were renewed. Sessions that turned out dead are left to the expiry hook.
func (s *AccountService) KeepAlive(ctx context.Context) (int, error) {
	records, err := s.sessions.ListValid(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list valid sessions: %w", err)
	}

	logger := log.With().Str("component", "account").Logger()
	renewed := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return renewed, err
		}
		if err := s.api.RefreshLogin(ctx, record.PlayerID, ownCredential(record)); err != nil {
			logger.Warn().Err(err).Str("player_id", record.PlayerID).Msg("login refresh failed")
			continue
		}
		renewed++
	}
	logger.Info().Int("renewed", renewed).Int("sessions", len(records)).Msg("keep alive finished")
	return renewed, nil
}

func (s *AccountService) ScheduleKeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.KeepAlive(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", "account").Msg("scheduled keep alive failed")
			}
		}
	}
}

func (s *AccountService) ownRecord(ctx context.Context, userID, playerID string) (*domain.SessionRecord, error) {
	record, err := s.sessions.GetByPlayerID(ctx, playerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrNoBoundAccount
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session of player %s: %w", playerID, err)
	}
	if record.OwnerUserID != userID {
		return nil, domain.ErrNoBoundAccount
	}
	if !record.Usable() {
		return nil, domain.ErrNoUsableSession
	}
	return record, nil
}

func ownCredential(record *domain.SessionRecord) domain.Credential {
	return (&ResolvedSession{Record: record, Owned: true}).CredentialFor(record.PlayerID)
}
