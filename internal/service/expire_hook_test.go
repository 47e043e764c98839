package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository/repofake"
	"github.com/HibiKier/wuthering-waves/internal/service"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

func TestExpireSessionHook(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeSessionRepo(session("alice", "p1", domain.SessionStatusValid))
	tokens := cache.NewMemoryStore(10)
	require.NoError(t, tokens.Set(ctx, "p1", "at", time.Hour))

	hook := service.ExpireSessionHook(repo, tokens)

	// A borrowed token failing leaves the player's own session alone.
	require.NoError(t, hook(ctx, "p1", "token-p9"))
	require.Equal(t, domain.SessionStatusValid, repo.Status("p1"))

	require.NoError(t, hook(ctx, "p1", "token-p1"))
	require.Equal(t, domain.SessionStatusInvalid, repo.Status("p1"))
	_, ok, err := tokens.Get(ctx, "p1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, hook(ctx, "unknown", "token"))
}
