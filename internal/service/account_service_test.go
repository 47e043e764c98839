package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository/repofake"
	"github.com/HibiKier/wuthering-waves/internal/service"
)

type fixedResolver struct {
	session *service.ResolvedSession
}

func (r fixedResolver) Resolve(context.Context, string, string) (*service.ResolvedSession, error) {
	return r.session, nil
}

type fakeAccountAPI struct {
	err error

	mu        sync.Mutex
	creds     []domain.Credential
	refreshed []string
}

func (f *fakeAccountAPI) record(cred domain.Credential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, cred)
}

func (f *fakeAccountAPI) GetBaseInfo(_ context.Context, playerID string, cred domain.Credential) (*domain.AccountInfo, error) {
	f.record(cred)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AccountInfo{PlayerID: playerID, Level: 80}, nil
}

func (f *fakeAccountAPI) GetTowerData(_ context.Context, _ string, cred domain.Credential) (*domain.TowerData, error) {
	f.record(cred)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TowerData{Unlocked: true}, nil
}

func (f *fakeAccountAPI) RefreshLogin(_ context.Context, playerID string, cred domain.Credential) error {
	f.record(cred)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && playerID != "p1" {
		return f.err
	}
	f.refreshed = append(f.refreshed, playerID)
	return nil
}

func (f *fakeAccountAPI) RefreshCalculator(_ context.Context, _ string, cred domain.Credential) error {
	f.record(cred)
	return f.err
}

func borrowedSession(owner, playerID string) *service.ResolvedSession {
	return &service.ResolvedSession{Record: session(owner, playerID, domain.SessionStatusValid), Owned: false}
}

func TestAccountService_BaseInfoWithOwnSession(t *testing.T) {
	api := &fakeAccountAPI{}
	tokens := &fakeTokens{}
	svc := service.NewAccountService(repofake.NewFakeSessionRepo(), fixedResolver{ownSession("p1")}, tokens, api)

	info, err := svc.BaseInfo(context.Background(), "alice", "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", info.PlayerID)
	require.Zero(t, tokens.calls)
	require.Equal(t, "token-p1", api.creds[0].SessionToken)
	require.Empty(t, api.creds[0].AccessToken)
}

func TestAccountService_TowerWithBorrowedSessionDerivesAccessToken(t *testing.T) {
	api := &fakeAccountAPI{}
	tokens := &fakeTokens{}
	svc := service.NewAccountService(repofake.NewFakeSessionRepo(), fixedResolver{borrowedSession("bob", "p9")}, tokens, api)

	tower, err := svc.Tower(context.Background(), "alice", "p1")
	require.NoError(t, err)
	require.True(t, tower.Unlocked)
	require.Equal(t, 1, tokens.calls)
	require.Equal(t, "token-p9", api.creds[0].SessionToken)
	require.Equal(t, "derived-at", api.creds[0].AccessToken)
}

func TestAccountService_RejectedBorrowedSessionDropsAccessToken(t *testing.T) {
	expired := &domain.LoginStatusError{PlayerID: "p9", Status: domain.LoginStatusExpired}
	api := &fakeAccountAPI{err: expired}
	tokens := &fakeTokens{}
	svc := service.NewAccountService(repofake.NewFakeSessionRepo(), fixedResolver{borrowedSession("bob", "p9")}, tokens, api)

	_, err := svc.BaseInfo(context.Background(), "alice", "p1")
	require.ErrorIs(t, err, error(expired))
	require.Equal(t, int32(1), tokens.invalidated.Load())

	api.err = errors.New("bad gateway")
	_, err = svc.Tower(context.Background(), "alice", "p1")
	require.Error(t, err)
	require.Equal(t, int32(1), tokens.invalidated.Load())
}

func TestAccountService_RefreshNeedsOwnUsableSession(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(
		session("alice", "p1", domain.SessionStatusValid),
		session("alice", "p2", domain.SessionStatusInvalid),
		session("bob", "p3", domain.SessionStatusValid),
	)
	api := &fakeAccountAPI{}
	svc := service.NewAccountService(repo, fixedResolver{}, &fakeTokens{}, api)
	ctx := context.Background()

	require.NoError(t, svc.RefreshLogin(ctx, "alice", "p1"))
	require.NoError(t, svc.RefreshCalculator(ctx, "alice", "p1"))
	require.Equal(t, "token-p1", api.creds[0].SessionToken)

	require.ErrorIs(t, svc.RefreshLogin(ctx, "alice", "p2"), domain.ErrNoUsableSession)
	require.ErrorIs(t, svc.RefreshLogin(ctx, "alice", "p3"), domain.ErrNoBoundAccount)
	require.ErrorIs(t, svc.RefreshCalculator(ctx, "alice", "p404"), domain.ErrNoBoundAccount)
	require.Len(t, api.creds, 2)
}

func TestAccountService_KeepAlive(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(
		session("alice", "p1", domain.SessionStatusValid),
		session("bob", "p2", domain.SessionStatusValid),
		session("carol", "p3", domain.SessionStatusInvalid),
	)
	api := &fakeAccountAPI{err: &domain.LoginStatusError{PlayerID: "p2", Status: domain.LoginStatusExpired}}
	svc := service.NewAccountService(repo, fixedResolver{}, &fakeTokens{}, api)

	renewed, err := svc.KeepAlive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, renewed)
	require.Equal(t, []string{"p1"}, api.refreshed)
}
