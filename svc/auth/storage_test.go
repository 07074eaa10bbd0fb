package auth_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/mongo"
	"github.com/ztruyen/ztc-auth/pkg/pg"
	"github.com/ztruyen/ztc-auth/svc/auth"
)

type testStorage interface {
	auth.Storage
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	runStorageSuite(t, func(*testing.T) testStorage { return auth.NewMemoryStorage() })
}

// TestMongoStorage runs against MONGODB_TEST_URL when it is set.
func TestMongoStorage(t *testing.T) {
	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" || testing.Short() {
		t.Skip("MONGODB_TEST_URL is not set")
	}

	ctx := context.Background()
	cfg := mongo.Config{
		ConnectionURL:  url,
		Database:       "ztc_auth_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    10,
		RetryAttempts:  1,
	}
	db, err := mongo.ConnectDatabase(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})

	runStorageSuite(t, func(t *testing.T) testStorage {
		store := auth.NewMongoStorage(db)
		require.NoError(t, store.EnsureIndexes(ctx))
		return store
	})

	t.Run("documents from the existing application", func(t *testing.T) {
		store := auth.NewMongoStorage(db)
		_, err := db.Collection("users").InsertOne(ctx, bson.D{
			{Key: "_id", Value: bson.NewObjectID()},
			{Key: "email", Value: "legacy@example.com"},
			{Key: "password", Value: "$2b$10$legacydigest"},
			{Key: "name", Value: "Legacy"},
			{Key: "avatar", Value: bson.NewObjectID()},
			{Key: "age", Value: 30.0},
			{Key: "role", Value: "user"},
			{Key: "isDeleted", Value: false},
		})
		require.NoError(t, err)

		acc, err := store.AccountByEmail(ctx, "legacy@example.com")
		require.NoError(t, err)
		assert.Equal(t, auth.ProviderLocal, acc.Provider)
		assert.NotEmpty(t, acc.AvatarID)

		require.NoError(t, store.SetRefreshRef(ctx, acc.ID, "ref-1"))
		byID, err := store.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "ref-1", byID.RefreshTokenRef)
		assert.Equal(t, acc.AvatarID, byID.AvatarID)

		_, err = store.AccountByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}

// TestPostgresStorage runs against PG_TEST_URL when it is set.
func TestPostgresStorage(t *testing.T) {
	url := os.Getenv("PG_TEST_URL")
	if url == "" || testing.Short() {
		t.Skip("PG_TEST_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: url,
		MaxOpenConns:     5,
		ConnectTimeout:   5 * time.Second,
		RetryAttempts:    1,
		MigrationsDir:    "migrations",
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, cfg, auth.Migrations, logger.Noop()))

	runStorageSuite(t, func(t *testing.T) testStorage {
		_, err := pool.Exec(ctx, "TRUNCATE accounts")
		require.NoError(t, err)
		return auth.NewPostgresStorage(pool)
	})
}

func runStorageSuite(t *testing.T, newStorage func(*testing.T) testStorage) {
	ctx := context.Background()

	create := func(t *testing.T, s testStorage, email string) *auth.Account {
		t.Helper()
		acc := &auth.Account{
			Email:        email,
			PasswordHash: "$2a$04$digest",
			Provider:     auth.ProviderLocal,
			Role:         auth.RoleUser,
			Name:         "Reader",
			Gender:       auth.GenderMale,
			Age:          20,
		}
		require.NoError(t, s.CreateAccount(ctx, acc))
		require.NotEqual(t, uuid.Nil, acc.ID)
		return acc
	}

	t.Run("create and find", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "find@example.com")

		byID, err := s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "find@example.com", byID.Email)
		assert.Equal(t, auth.RoleUser, byID.Role)
		assert.Equal(t, 20, byID.Age)
		assert.False(t, byID.CreatedAt.IsZero())

		byEmail, err := s.AccountByEmail(ctx, "find@example.com")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, byEmail.ID)

		_, err = s.AccountByID(ctx, uuid.New())
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		_, err = s.AccountByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s := newStorage(t)
		create(t, s, "dup@example.com")
		err := s.CreateAccount(ctx, &auth.Account{Email: "dup@example.com", Provider: auth.ProviderGoogle, Role: auth.RoleUser})
		assert.ErrorIs(t, err, auth.ErrDuplicateAccount)
	})

	t.Run("refresh reference swap", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "swap@example.com")

		assert.ErrorIs(t, s.SwapRefreshRef(ctx, acc.ID, "", "next"), auth.ErrRefMismatch)

		require.NoError(t, s.SetRefreshRef(ctx, acc.ID, "ref-1"))
		require.NoError(t, s.SwapRefreshRef(ctx, acc.ID, "ref-1", "ref-2"))
		assert.ErrorIs(t, s.SwapRefreshRef(ctx, acc.ID, "ref-1", "ref-3"), auth.ErrRefMismatch)

		got, err := s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "ref-2", got.RefreshTokenRef)

		require.NoError(t, s.SetRefreshRef(ctx, acc.ID, ""))
		got, err = s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, got.RefreshTokenRef)

		assert.ErrorIs(t, s.SetRefreshRef(ctx, uuid.New(), "x"), auth.ErrAccountNotFound)
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "cas@example.com")
		require.NoError(t, s.SetRefreshRef(ctx, acc.ID, "start"))

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		wg.Add(workers)
		for i := range workers {
			go func() {
				defer wg.Done()
				if s.SwapRefreshRef(ctx, acc.ID, "start", fmt.Sprintf("next-%d", i)) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("reset token", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "reset@example.com")
		require.NoError(t, s.SetRefreshRef(ctx, acc.ID, "live"))

		now := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.SetResetToken(ctx, acc.ID, "hash-1", now.Add(15*time.Minute)))

		_, err := s.ConsumeResetToken(ctx, "hash-1", now.Add(16*time.Minute), "new-digest")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
		_, err = s.ConsumeResetToken(ctx, "other", now, "new-digest")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)

		got, err := s.ConsumeResetToken(ctx, "hash-1", now, "new-digest")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
		assert.Equal(t, "new-digest", got.PasswordHash)
		assert.Empty(t, got.ResetTokenHash)
		assert.True(t, got.ResetTokenExpiry.IsZero())
		assert.Empty(t, got.RefreshTokenRef)

		_, err = s.ConsumeResetToken(ctx, "hash-1", now, "again")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("clearing reset token", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "clear@example.com")

		require.NoError(t, s.SetResetToken(ctx, acc.ID, "hash-2", time.Now().Add(time.Hour)))
		require.NoError(t, s.SetResetToken(ctx, acc.ID, "", time.Time{}))

		got, err := s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, got.ResetTokenHash)
		assert.True(t, got.ResetTokenExpiry.IsZero())

		_, err = s.ConsumeResetToken(ctx, "", time.Now(), "digest")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("clearing only the matching reset token", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "compare@example.com")
		now := time.Now()

		require.NoError(t, s.SetResetToken(ctx, acc.ID, "hash-old", now.Add(time.Hour)))
		require.NoError(t, s.SetResetToken(ctx, acc.ID, "hash-new", now.Add(time.Hour)))

		// A stale clear must not wipe the newer token.
		require.NoError(t, s.ClearResetToken(ctx, acc.ID, "hash-old"))
		got, err := s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, "hash-new", got.ResetTokenHash)
		assert.False(t, got.ResetTokenExpiry.IsZero())

		require.NoError(t, s.ClearResetToken(ctx, acc.ID, "hash-new"))
		got, err = s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, got.ResetTokenHash)
		assert.True(t, got.ResetTokenExpiry.IsZero())

		_, err = s.ConsumeResetToken(ctx, "hash-new", now, "digest")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})

	t.Run("soft delete", func(t *testing.T) {
		s := newStorage(t)
		acc := create(t, s, "deleted@example.com")
		require.NoError(t, s.SetRefreshRef(ctx, acc.ID, "live"))
		require.NoError(t, s.SetResetToken(ctx, acc.ID, "hash-3", time.Now().Add(time.Hour)))

		require.NoError(t, s.SoftDelete(ctx, acc.ID))

		got, err := s.AccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
		assert.NotNil(t, got.DeletedAt)
		assert.Empty(t, got.RefreshTokenRef)

		_, err = s.ConsumeResetToken(ctx, "hash-3", time.Now(), "digest")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)
	})
}
