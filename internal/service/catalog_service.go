package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

// CatalogAPI lists what is released in the game. Any logged in session can
// read it.
type CatalogAPI interface {
	ListCatalogCharacters(ctx context.Context, ownerPlayerID string, cred domain.Credential) ([]domain.CatalogCharacter, error)
	ListCatalogWeapons(ctx context.Context, ownerPlayerID string, cred domain.Credential) ([]domain.CatalogWeapon, error)
}

const (
	CharacterCatalogTTL = 24 * time.Hour
	WeaponCatalogTTL    = 6 * time.Hour

	// catalogAttempts bounds how many sessions one catalog load tries.
	catalogAttempts = 3
)

type CatalogService struct {
	sessions   repository.SessionRepository
	api        CatalogAPI
	characters *cache.Memo[[]domain.CatalogCharacter]
	weapons    *cache.Memo[[]domain.CatalogWeapon]
	shuffle    func(n int, swap func(i, j int))
}

func NewCatalogService(sessions repository.SessionRepository, api CatalogAPI) *CatalogService {
	return &CatalogService{
		sessions:   sessions,
		api:        api,
		characters: cache.NewMemo[[]domain.CatalogCharacter](CharacterCatalogTTL),
		weapons:    cache.NewMemo[[]domain.CatalogWeapon](WeaponCatalogTTL),
		shuffle:    rand.Shuffle,
	}
}

func (s *CatalogService) Characters(ctx context.Context) ([]domain.CatalogCharacter, error) {
	return s.characters.Get(ctx, "characters", func(ctx context.Context) ([]domain.CatalogCharacter, error) {
		return loadCatalog(ctx, s, s.api.ListCatalogCharacters)
	})
}

func (s *CatalogService) Weapons(ctx context.Context) ([]domain.CatalogWeapon, error) {
	return s.weapons.Get(ctx, "weapons", func(ctx context.Context) ([]domain.CatalogWeapon, error) {
		return loadCatalog(ctx, s, s.api.ListCatalogWeapons)
	})
}

// IsReleasedCharacter reports whether characterID is playable on the live
// servers. Preview characters are listed but not released.
func (s *CatalogService) IsReleasedCharacter(ctx context.Context, characterID int) (bool, error) {
	characters, err := s.Characters(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(characters, func(c domain.CatalogCharacter) bool {
		return c.CharacterID == characterID && !c.Preview
	}), nil
}

// loadCatalog reads a catalog with random VALID sessions until one answers.
func loadCatalog[T any](ctx context.Context, s *CatalogService, list func(context.Context, string, domain.Credential) ([]T, error)) ([]T, error) {
	records, err := s.sessions.ListValid(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list valid sessions: %w", err)
	}
	s.shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	if len(records) > catalogAttempts {
		records = records[:catalogAttempts]
	}

	logger := log.With().Str("component", "catalog").Logger()
	var lastErr error
	for _, record := range records {
		out, err := list(ctx, record.PlayerID, ownCredential(record))
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Str("player_id", record.PlayerID).Msg("catalog read failed")
		lastErr = err
	}
	if lastErr == nil {
		return nil, domain.ErrNoUsableSession
	}
	return nil, errors.Join(domain.ErrNoUsableSession, lastErr)
}
