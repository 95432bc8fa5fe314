package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markit/attendance/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.PasswordResetCode{}))
	return NewRepository(db)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	user := &entities.User{ID: "u-1", Email: "student@test.edu", DisplayName: "Student"}
	require.NoError(t, repo.Create(ctx, user))

	byID, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "student@test.edu", byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "student@test.edu")
	require.NoError(t, err)
	assert.Equal(t, "u-1", byEmail.ID)

	err = repo.Create(ctx, &entities.User{ID: "u-2", Email: "student@test.edu"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRepository_NotFound(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@test.edu")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.BumpTokenGeneration(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, repo.SetClaimRole(ctx, "missing", "admin"), ErrNotFound)
}

func TestRepository_ClaimsAndGeneration(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entities.User{ID: "u-1", Email: "a@test.edu"}))
	require.NoError(t, repo.Create(ctx, &entities.User{ID: "u-2", Email: "b@test.edu"}))
	require.NoError(t, repo.SetClaimRole(ctx, "u-1", "organizer"))
	require.NoError(t, repo.BumpTokenGeneration(ctx, "u-1"))
	require.NoError(t, repo.BumpTokenGeneration(ctx, "u-1"))

	user, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleOrganizer, user.Role())
	assert.Equal(t, 2, user.TokenGeneration)

	organizers, err := repo.ListByRole(ctx, entities.RoleOrganizer)
	require.NoError(t, err)
	require.Len(t, organizers, 1)
	assert.Equal(t, "u-1", organizers[0].ID)

	counts, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entities.RoleOrganizer])
	assert.Equal(t, int64(1), counts[entities.Role("")])
}

func TestRepository_ResetCodes(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.SaveResetCode(ctx, &entities.PasswordResetCode{
		CodeHash: "live", UserID: "u-1", ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.SaveResetCode(ctx, &entities.PasswordResetCode{
		CodeHash: "stale", UserID: "u-1", ExpiresAt: now.Add(-time.Minute),
	}))

	code, err := repo.ConsumeResetCode(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", code.UserID)

	_, err = repo.ConsumeResetCode(ctx, "live", now)
	assert.ErrorIs(t, err, ErrCodeInvalid, "codes are single use")

	_, err = repo.ConsumeResetCode(ctx, "stale", now)
	assert.ErrorIs(t, err, ErrCodeInvalid)

	deleted, err := repo.DeleteExpiredResetCodes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
