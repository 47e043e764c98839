package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/pkg/validator"
)

// SnapshotSource is the part of the companion API a fetch reads from.
type SnapshotSource interface {
	GetRoster(ctx context.Context, playerID string, cred domain.Credential) (*domain.Roster, error)
	GetCharacterDetail(ctx context.Context, playerID string, characterID int, cred domain.Credential) (*domain.CharacterSnapshot, error)
}

// AccessTokenProvider hands out access tokens for reading other players.
type AccessTokenProvider interface {
	GetAccessToken(ctx context.Context, playerID, sessionToken, deviceID, serverID string) (string, error)
	Invalidate(ctx context.Context, playerID string) error
}

// DefaultFetchConcurrency is the number of detail calls in flight per fetch.
// The API penalizes bursts.
const DefaultFetchConcurrency = 2

type FetchService struct {
	source      SnapshotSource
	tokens      AccessTokenProvider
	concurrency int64
	validator   *validator.Validator
	metrics     *metrics.Metrics
}

func NewFetchService(source SnapshotSource, tokens AccessTokenProvider, concurrency int64, m *metrics.Metrics) *FetchService {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &FetchService{
		source:      source,
		tokens:      tokens,
		concurrency: concurrency,
		validator:   validator.NewValidator(),
		metrics:     m,
	}
}

// FetchAll reads every selected character of playerID with session. Failed
// detail calls are logged and dropped, so the result may be shorter than the
// selection; it is in completion order.
func (s *FetchService) FetchAll(ctx context.Context, playerID string, session *ResolvedSession, selector domain.CharacterSelector) ([]*domain.CharacterSnapshot, error) {
	ctx, span := tracer.Start(ctx, "FetchService.FetchAll", trace.WithAttributes(
		attribute.String("player_id", playerID),
		attribute.Bool("owned", session.Owned),
	))
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	cred, err := readCredential(ctx, s.tokens, playerID, session)
	if err != nil {
		recordError(span, err, "access token failed")
		return nil, err
	}

	var dropToken sync.Once
	onFailure := func(err error) {
		if rejectedBorrowed(playerID, session, err) {
			dropToken.Do(func() { forgetAccessToken(ctx, s.tokens, playerID) })
		}
	}

	roster, err := s.source.GetRoster(ctx, playerID, cred)
	if err != nil {
		onFailure(err)
		recordError(span, err, "roster failed")
		return nil, fmt.Errorf("failed to get roster for player %s: %w", playerID, err)
	}

	ids := roster.CharacterIDs
	if !session.Owned {
		ids = roster.ShowcaseIDs
	}
	if len(ids) == 0 {
		return nil, domain.ErrEmptyRoleList
	}

	var selected []int
	for _, id := range ids {
		if selector.Includes(id) {
			selected = append(selected, id)
		}
	}
	if len(selected) == 0 {
		return nil, domain.ErrNoMatchingCharacter
	}
	span.SetAttributes(attribute.Int("characters", len(selected)))

	snapshots, err := s.fetchDetails(ctx, playerID, cred, selected, onFailure)
	if err != nil {
		recordError(span, err, "fetch aborted")
		return nil, err
	}
	if len(snapshots) == 0 {
		if selector.All() {
			return nil, domain.ErrEmptyRoleList
		}
		return nil, domain.ErrNoMatchingCharacter
	}
	return snapshots, nil
}

func (s *FetchService) fetchDetails(ctx context.Context, playerID string, cred domain.Credential, ids []int, onFailure func(error)) ([]*domain.CharacterSnapshot, error) {
	sem := semaphore.NewWeighted(s.concurrency)
	logger := log.With().Str("component", "fetch").Str("player_id", playerID).Logger()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		snapshots = make([]*domain.CharacterSnapshot, 0, len(ids))
	)

	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(characterID int) {
			defer wg.Done()
			defer sem.Release(1)

			snap, err := s.source.GetCharacterDetail(ctx, playerID, characterID, cred)
			if err == nil {
				err = s.validator.Validate(snap)
			}
			if err != nil {
				onFailure(err)
				s.metrics.FetchFailures.Inc()
				logger.Warn().Err(err).Int("character_id", characterID).Msg("character fetch failed")
				return
			}

			mu.Lock()
			snapshots = append(snapshots, snap)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
