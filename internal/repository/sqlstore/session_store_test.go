package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/internal/repository/sqlstore"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "waves.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, sqlstore.Migrate(context.Background(), db))

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(*) FROM schema_migrations`))
	require.Equal(t, 1, applied)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := sqlstore.Open(context.Background(), sqlstore.Options{Driver: "mysql"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := sqlstore.NewSessionRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{
		OwnerUserID: "alice", PlayerID: "100", SessionToken: "tok-a1", DeviceID: "D1", Status: domain.SessionStatusValid,
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{
		OwnerUserID: "alice", PlayerID: "101", SessionToken: "tok-a2", Status: domain.SessionStatusInvalid,
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{
		OwnerUserID: "bob", PlayerID: "200", SessionToken: "tok-b1", Status: domain.SessionStatusValid,
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{
		OwnerUserID: "carol", PlayerID: "300", Status: domain.SessionStatusValid,
	}))

	t.Run("get by player id", func(t *testing.T) {
		record, err := repo.GetByPlayerID(ctx, "100")
		require.NoError(t, err)
		require.Equal(t, "alice", record.OwnerUserID)
		require.Equal(t, "tok-a1", record.SessionToken)
		require.Equal(t, domain.SessionStatusValid, record.Status)
		require.False(t, record.CreatedAt.IsZero())
	})

	t.Run("missing player", func(t *testing.T) {
		_, err := repo.GetByPlayerID(ctx, "999")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list by owner keeps insertion order", func(t *testing.T) {
		records, err := repo.ListByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.Equal(t, "100", records[0].PlayerID)
		require.Equal(t, "101", records[1].PlayerID)
	})

	t.Run("pool excludes owner, invalid and tokenless records", func(t *testing.T) {
		records, err := repo.ListValidExcludingOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "200", records[0].PlayerID)
	})

	t.Run("list valid", func(t *testing.T) {
		records, err := repo.ListValid(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
	})

	t.Run("upsert replaces by player id", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, &domain.SessionRecord{
			OwnerUserID: "dave", PlayerID: "200", SessionToken: "tok-d1", Status: domain.SessionStatusValid,
		}))
		record, err := repo.GetByPlayerID(ctx, "200")
		require.NoError(t, err)
		require.Equal(t, "dave", record.OwnerUserID)
		require.Equal(t, "tok-d1", record.SessionToken)

		bob, err := repo.ListByOwner(ctx, "bob")
		require.NoError(t, err)
		require.Empty(t, bob)
	})

	t.Run("update status and access token", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, "100", domain.SessionStatusInvalid))
		require.NoError(t, repo.UpdateAccessToken(ctx, "100", "bat-1"))

		record, err := repo.GetByPlayerID(ctx, "100")
		require.NoError(t, err)
		require.Equal(t, domain.SessionStatusInvalid, record.Status)
		require.Equal(t, "bat-1", record.AccessToken)
	})

	t.Run("update missing player", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, "999", domain.SessionStatusInvalid)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}
