package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/entities"
)

func setupProvider(t *testing.T) *Provider {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.PasswordResetCode{}))

	p, err := NewProvider(users.NewRepository(db), config.Identity{
		TokenSecret: "test-secret",
		Issuer:      "test-issuer",
		TokenTTL:    time.Hour,
		ResetTTL:    time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	require.NoError(t, err)
	return p
}

func TestProvider_SignInCarriesRoleClaim(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, UserToCreate{Email: "Admin@Test.edu ", Password: "validpass", DisplayName: "Admin", Role: entities.RoleAdmin})
	require.NoError(t, err)

	token, err := p.SignInWithPassword(ctx, "admin@test.edu", "validpass")
	require.NoError(t, err)
	assert.NotEmpty(t, token.IDToken)
	assert.Equal(t, entities.RoleAdmin, token.Claims.RoleOrDefault())

	claims, err := p.VerifyIDToken(ctx, token.IDToken)
	require.NoError(t, err)
	assert.Equal(t, token.User.ID, claims.UserID())
	assert.Equal(t, "admin@test.edu", claims.Email)
	assert.Equal(t, entities.RoleAdmin, claims.Identity().Role)

	user, err := p.GetUser(ctx, claims.UserID())
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
}

func TestProvider_MissingClaimDefaultsToStudent(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, UserToCreate{Email: "plain@test.edu", Password: "validpass"})
	require.NoError(t, err)

	token, err := p.SignInWithPassword(ctx, "plain@test.edu", "validpass")
	require.NoError(t, err)
	assert.Empty(t, token.Claims.Role)
	assert.Equal(t, entities.RoleStudent, token.Claims.RoleOrDefault())
}

func TestProvider_SignInErrors(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, UserToCreate{Email: "student@test.edu", Password: "validpass"})
	require.NoError(t, err)

	_, err = p.CreateUser(ctx, UserToCreate{Email: "student@test.edu", Password: "validpass"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = p.CreateUser(ctx, UserToCreate{Email: "short@test.edu", Password: "123"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = p.CreateUser(ctx, UserToCreate{Email: "bad@test.edu", Password: "validpass", Role: "superuser"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = p.CreateUser(ctx, UserToCreate{Email: "not-an-address", Password: "validpass"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.SignInWithPassword(ctx, "student@test.edu", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = p.SignInWithPassword(ctx, "nobody@test.edu", "validpass")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProvider_VerifyRejectsBadTokens(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, UserToCreate{Email: "student@test.edu", Password: "validpass"})
	require.NoError(t, err)

	token, err := p.SignInWithPassword(ctx, "student@test.edu", "validpass")
	require.NoError(t, err)

	_, err = p.VerifyIDToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := setupProvider(t)
	other.secret = []byte("different")
	_, err = p.VerifyIDToken(ctx, mustMint(t, other, user))
	assert.ErrorIs(t, err, ErrInvalidToken)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.VerifyIDToken(ctx, token.IDToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	p.now = time.Now

	require.NoError(t, p.RevokeRefreshTokens(ctx, user.ID))
	_, err = p.VerifyIDToken(ctx, token.IDToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	fresh, err := p.SignInWithPassword(ctx, "student@test.edu", "validpass")
	require.NoError(t, err)
	_, err = p.VerifyIDToken(ctx, fresh.IDToken)
	assert.NoError(t, err)
}

func TestProvider_SetCustomClaims(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, UserToCreate{Email: "club@test.edu", Password: "validpass"})
	require.NoError(t, err)

	require.NoError(t, p.SetCustomClaims(ctx, user.ID, entities.RoleOrganizer))
	token, err := p.SignInWithPassword(ctx, "club@test.edu", "validpass")
	require.NoError(t, err)
	assert.Equal(t, "organizer", token.Claims.Role)

	assert.ErrorIs(t, p.SetCustomClaims(ctx, user.ID, "root"), ErrInvalidRole)
	assert.ErrorIs(t, p.SetCustomClaims(ctx, "missing", entities.RoleAdmin), ErrUserNotFound)
}

func TestProvider_DisabledUsers(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	user, err := p.CreateUser(ctx, UserToCreate{Email: "off@test.edu", Password: "validpass", Disabled: true})
	require.NoError(t, err)
	assert.False(t, user.Active)

	_, err = p.SignInWithPassword(ctx, "off@test.edu", "validpass")
	assert.ErrorIs(t, err, ErrUserDisabled)

	require.NoError(t, p.SetDisabled(ctx, user.ID, false))
	token, err := p.SignInWithPassword(ctx, "off@test.edu", "validpass")
	require.NoError(t, err)

	require.NoError(t, p.SetDisabled(ctx, user.ID, true))
	_, err = p.VerifyIDToken(ctx, token.IDToken)
	assert.Error(t, err)

	assert.ErrorIs(t, p.SetDisabled(ctx, "missing", true), ErrUserNotFound)
}

func TestProvider_PasswordReset(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateUser(ctx, UserToCreate{Email: "student@test.edu", Password: "validpass"})
	require.NoError(t, err)
	old, err := p.SignInWithPassword(ctx, "student@test.edu", "validpass")
	require.NoError(t, err)

	_, err = p.GeneratePasswordResetCode(ctx, "nobody@test.edu")
	assert.ErrorIs(t, err, ErrUserNotFound)

	code, err := p.GeneratePasswordResetCode(ctx, "student@test.edu")
	require.NoError(t, err)

	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, code, "123"), ErrPasswordTooShort)
	require.NoError(t, p.ConfirmPasswordReset(ctx, code, "newpassword"))
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, code, "another1"), ErrInvalidResetCode)

	_, err = p.SignInWithPassword(ctx, "student@test.edu", "validpass")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	_, err = p.SignInWithPassword(ctx, "student@test.edu", "newpassword")
	assert.NoError(t, err)

	_, err = p.VerifyIDToken(ctx, old.IDToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	purged, err := p.PurgeExpiredResetCodes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func mustMint(t *testing.T, p *Provider, user *entities.User) string {
	t.Helper()
	token, err := p.mint(user)
	require.NoError(t, err)
	return token.IDToken
}
