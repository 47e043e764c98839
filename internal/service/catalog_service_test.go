package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository/repofake"
	"github.com/HibiKier/wuthering-waves/internal/service"
)

type fakeCatalogAPI struct {
	err            error
	characterCalls atomic.Int32
	weaponCalls    atomic.Int32
}

func (f *fakeCatalogAPI) ListCatalogCharacters(_ context.Context, ownerPlayerID string, cred domain.Credential) ([]domain.CatalogCharacter, error) {
	f.characterCalls.Add(1)
	if cred.SessionToken != "token-"+ownerPlayerID {
		return nil, fmt.Errorf("credential of %s used for %s", cred.SessionToken, ownerPlayerID)
	}
	if f.err != nil {
		return nil, f.err
	}
	return []domain.CatalogCharacter{
		{CharacterID: 1102, Name: "Sanhua"},
		{CharacterID: 1509, Name: "Next", Preview: true},
	}, nil
}

func (f *fakeCatalogAPI) ListCatalogWeapons(_ context.Context, _ string, _ domain.Credential) ([]domain.CatalogWeapon, error) {
	f.weaponCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.CatalogWeapon{{WeaponID: 21010016}}, nil
}

func TestCatalogService_CachesCatalogs(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(session("alice", "p1", domain.SessionStatusValid))
	api := &fakeCatalogAPI{}
	svc := service.NewCatalogService(repo, api)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		characters, err := svc.Characters(ctx)
		require.NoError(t, err)
		require.Len(t, characters, 2)
		weapons, err := svc.Weapons(ctx)
		require.NoError(t, err)
		require.Len(t, weapons, 1)
	}
	require.Equal(t, int32(1), api.characterCalls.Load())
	require.Equal(t, int32(1), api.weaponCalls.Load())
}

func TestCatalogService_IsReleasedCharacter(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(session("alice", "p1", domain.SessionStatusValid))
	svc := service.NewCatalogService(repo, &fakeCatalogAPI{})
	ctx := context.Background()

	for id, want := range map[int]bool{1102: true, 1509: false, 9999: false} {
		got, err := svc.IsReleasedCharacter(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got, "character %d", id)
	}
}

func TestCatalogService_GivesUpAfterFewSessions(t *testing.T) {
	var records []*domain.SessionRecord
	for i := 0; i < 10; i++ {
		records = append(records, session(fmt.Sprintf("user%d", i), fmt.Sprintf("p%d", i), domain.SessionStatusValid))
	}
	boom := errors.New("bad gateway")
	api := &fakeCatalogAPI{err: boom}
	svc := service.NewCatalogService(repofake.NewFakeSessionRepo(records...), api)

	_, err := svc.Characters(context.Background())
	require.ErrorIs(t, err, domain.ErrNoUsableSession)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(3), api.characterCalls.Load())

	api.err = nil
	characters, err := svc.Characters(context.Background())
	require.NoError(t, err)
	require.Len(t, characters, 2)
}

func TestCatalogService_NoValidSession(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(session("alice", "p1", domain.SessionStatusInvalid))
	api := &fakeCatalogAPI{}
	svc := service.NewCatalogService(repo, api)

	_, err := svc.Weapons(context.Background())
	require.ErrorIs(t, err, domain.ErrNoUsableSession)
	require.Zero(t, api.weaponCalls.Load())
}
