package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository/repofake"
	"github.com/HibiKier/wuthering-waves/internal/service"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

type stubResolver struct {
	err error
}

func (r stubResolver) Resolve(_ context.Context, _, playerID string) (*service.ResolvedSession, error) {
	if r.err != nil {
		return nil, r.err
	}
	return ownSession(playerID), nil
}

type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *countingFetcher) FetchAll(_ context.Context, _ string, _ *service.ResolvedSession, _ domain.CharacterSelector) ([]*domain.CharacterSnapshot, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return []*domain.CharacterSnapshot{{Base: domain.CharacterBase{CharacterID: 7}}}, nil
}

type stubReconciler struct{}

func (stubReconciler) Reconcile(_ context.Context, _ string, fetched []*domain.CharacterSnapshot) (*domain.ReconcileResult, error) {
	result := &domain.ReconcileResult{}
	for _, s := range fetched {
		result.ChangedIDs = append(result.ChangedIDs, s.CharacterID())
	}
	return result, nil
}

func newRefreshService(repo *repofake.FakeSessionRepo, fetcher service.SnapshotFetcher, resolver service.CredentialResolver, singleFlight bool) *service.RefreshService {
	return service.NewRefreshService(repo, resolver, fetcher, stubReconciler{}, cache.NewMemoryStore(0),
		service.RefreshOptions{Cooldown: time.Minute, SingleFlight: singleFlight}, nil)
}

func TestRefreshService_Cooldown(t *testing.T) {
	fetcher := &countingFetcher{}
	svc := newRefreshService(repofake.NewFakeSessionRepo(), fetcher, stubResolver{}, false)

	result, err := svc.Refresh(context.Background(), "alice", "p1", domain.SelectAll())
	require.NoError(t, err)
	require.Equal(t, []int{7}, result.ChangedIDs)

	_, err = svc.Refresh(context.Background(), "alice", "p1", domain.SelectAll())
	require.ErrorIs(t, err, domain.ErrRefreshTooFrequent)

	_, err = svc.Refresh(context.Background(), "alice", "p2", domain.SelectAll())
	require.NoError(t, err)
	require.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRefreshService_FailureDoesNotArmCooldown(t *testing.T) {
	fetcher := &countingFetcher{}
	svc := newRefreshService(repofake.NewFakeSessionRepo(), fetcher, stubResolver{err: domain.ErrNoUsableSession}, false)

	for i := 0; i < 2; i++ {
		_, err := svc.Refresh(context.Background(), "alice", "p1", domain.SelectAll())
		require.ErrorIs(t, err, domain.ErrNoUsableSession)
	}
	require.Zero(t, fetcher.calls.Load())
}

func TestRefreshService_SingleFlight(t *testing.T) {
	fetcher := &countingFetcher{release: make(chan struct{})}
	svc := newRefreshService(repofake.NewFakeSessionRepo(), fetcher, stubResolver{}, true)

	var wg sync.WaitGroup
	results := make([]*domain.ReconcileResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Refresh(context.Background(), "alice", "p1", domain.SelectAll())
		}(i)
	}

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the second caller time to join the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, int32(1), fetcher.calls.Load())
	require.Equal(t, results[0], results[1])
}

func TestRefreshService_SingleFlightIsPerUser(t *testing.T) {
	fetcher := &countingFetcher{release: make(chan struct{})}
	svc := newRefreshService(repofake.NewFakeSessionRepo(), fetcher, stubResolver{}, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(context.Background(), user, "p1", domain.SelectAll())
		}(i, user)
	}

	// Each user resolves its own session, so neither joins the other's run.
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
}

func TestRefreshService_CooldownHoldsForManyPlayers(t *testing.T) {
	fetcher := &countingFetcher{}
	svc := newRefreshService(repofake.NewFakeSessionRepo(), fetcher, stubResolver{}, false)
	ctx := context.Background()

	const players = 250
	for i := 0; i < players; i++ {
		_, err := svc.Refresh(ctx, "alice", fmt.Sprintf("p%d", i), domain.SelectAll())
		require.NoError(t, err)
	}
	for i := 0; i < players; i++ {
		_, err := svc.Refresh(ctx, "alice", fmt.Sprintf("p%d", i), domain.SelectAll())
		require.ErrorIs(t, err, domain.ErrRefreshTooFrequent)
	}
	require.Equal(t, int32(players), fetcher.calls.Load())
}

func TestRefreshService_DefaultPlayer(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(session("alice", "p1", domain.SessionStatusValid))
	fetcher := &countingFetcher{}
	svc := newRefreshService(repo, fetcher, stubResolver{}, true)

	_, err := svc.Refresh(context.Background(), "alice", "", domain.SelectAll())
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), "bob", "", domain.SelectAll())
	require.ErrorIs(t, err, domain.ErrNoBoundAccount)
}

func TestRefreshService_RefreshAll(t *testing.T) {
	repo := repofake.NewFakeSessionRepo(
		session("alice", "p1", domain.SessionStatusValid),
		session("bob", "p2", domain.SessionStatusValid),
		session("carol", "p3", domain.SessionStatusInvalid),
	)
	fetcher := &countingFetcher{}
	svc := newRefreshService(repo, fetcher, stubResolver{}, true)

	require.NoError(t, svc.RefreshAll(context.Background()))
	require.Equal(t, int32(2), fetcher.calls.Load())

	// A second run inside the cooldown is skipped per player.
	require.NoError(t, svc.RefreshAll(context.Background()))
	require.Equal(t, int32(2), fetcher.calls.Load())
}
