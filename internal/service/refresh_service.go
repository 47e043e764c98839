package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

const DefaultRefreshCooldown = 60 * time.Second

type CredentialResolver interface {
	Resolve(ctx context.Context, requestingUser, playerID string) (*ResolvedSession, error)
}

type SnapshotFetcher interface {
	FetchAll(ctx context.Context, playerID string, session *ResolvedSession, selector domain.CharacterSelector) ([]*domain.CharacterSnapshot, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, playerID string, fetched []*domain.CharacterSnapshot) (*domain.ReconcileResult, error)
}

type RefreshOptions struct {
	Cooldown time.Duration
	// SingleFlight coalesces concurrent refreshes of the same player and
	// selection into one run.
	SingleFlight bool
}

// RefreshService is the entry point of the chat commands and the scheduled
// job: resolve a session, fetch, reconcile.
type RefreshService struct {
	sessions    repository.SessionRepository
	credentials CredentialResolver
	fetcher     SnapshotFetcher
	reconciler  Reconciler
	guard       cache.Store
	opts        RefreshOptions
	metrics     *metrics.Metrics
	group       singleflight.Group
}

func NewRefreshService(
	sessions repository.SessionRepository,
	credentials CredentialResolver,
	fetcher SnapshotFetcher,
	reconciler Reconciler,
	guard cache.Store,
	opts RefreshOptions,
	m *metrics.Metrics,
) *RefreshService {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultRefreshCooldown
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &RefreshService{
		sessions:    sessions,
		credentials: credentials,
		fetcher:     fetcher,
		reconciler:  reconciler,
		guard:       guard,
		opts:        opts,
		metrics:     m,
	}
}

// Refresh updates the stored characters of playerID for userID. An empty
// playerID means the first account the user has bound.
func (s *RefreshService) Refresh(ctx context.Context, userID, playerID string, selector domain.CharacterSelector) (*domain.ReconcileResult, error) {
	if playerID == "" {
		bound, err := s.defaultPlayer(ctx, userID)
		if err != nil {
			return nil, err
		}
		playerID = bound
	}

	if !s.opts.SingleFlight {
		return s.refresh(ctx, userID, playerID, selector)
	}

	// The shared run outlives a caller that gives up waiting.
	shared := context.WithoutCancel(ctx)
	// Callers only share a run they would have resolved identically.
	key := userID + "|" + playerID + "|" + selector.Key()
	ch := s.group.DoChan(key, func() (any, error) {
		return s.refresh(shared, userID, playerID, selector)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ReconcileResult), nil
	}
}

func (s *RefreshService) defaultPlayer(ctx context.Context, userID string) (string, error) {
	records, err := s.sessions.ListByOwner(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions of user %s: %w", userID, err)
	}
	if len(records) == 0 {
		return "", domain.ErrNoBoundAccount
	}
	return records[0].PlayerID, nil
}

func (s *RefreshService) refresh(ctx context.Context, userID, playerID string, selector domain.CharacterSelector) (*domain.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "RefreshService.Refresh", trace.WithAttributes(
		attribute.String("player_id", playerID),
		attribute.String("selector", selector.Key()),
	))
	defer span.End()

	logger := log.With().Str("component", "refresh").Str("player_id", playerID).Logger()

	_, recent, err := s.guard.Get(ctx, playerID)
	if err != nil {
		logger.Warn().Err(err).Msg("refresh guard read failed")
	}
	if recent {
		s.metrics.RefreshRejected.Inc()
		return nil, domain.ErrRefreshTooFrequent
	}

	session, err := s.credentials.Resolve(ctx, userID, playerID)
	if err != nil {
		recordError(span, err, "no session")
		return nil, err
	}

	snapshots, err := s.fetcher.FetchAll(ctx, playerID, session, selector)
	if err != nil {
		recordError(span, err, "fetch failed")
		return nil, err
	}

	result, err := s.reconciler.Reconcile(ctx, playerID, snapshots)
	if err != nil {
		recordError(span, err, "reconcile failed")
		return nil, err
	}

	if err := s.guard.Set(ctx, playerID, time.Now().UTC().Format(time.RFC3339), s.opts.Cooldown); err != nil {
		logger.Warn().Err(err).Msg("refresh guard write failed")
	}
	return result, nil
}

// RefreshAll refreshes every player with a VALID session on behalf of its
// owner. Failures are logged and do not stop the run.
func (s *RefreshService) RefreshAll(ctx context.Context) error {
	records, err := s.sessions.ListValid(ctx)
	if err != nil {
		return fmt.Errorf("failed to list valid sessions: %w", err)
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.Refresh(ctx, record.OwnerUserID, record.PlayerID, domain.SelectAll())
		logger := log.With().Str("component", "refresh").Str("player_id", record.PlayerID).Logger()
		switch {
		case errors.Is(err, domain.ErrRefreshTooFrequent):
			logger.Debug().Msg("scheduled refresh skipped")
		case err != nil:
			logger.Warn().Err(err).Msg("scheduled refresh failed")
		default:
			logger.Info().Int("changed", len(result.ChangedIDs)).Msg("scheduled refresh done")
		}
	}
	return nil
}

// Schedule runs RefreshAll every interval until ctx is done.
func (s *RefreshService) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", "refresh").Msg("scheduled refresh run failed")
			}
		}
	}
}
