package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/validation"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserDisabled     = errors.New("user disabled")
	ErrEmailExists      = errors.New("email already exists")
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email is not a valid address")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrInvalidResetCode = errors.New("invalid or expired reset code")
)

// UserToCreate describes a new account. Either Password or PasswordHash must
// be set; PasswordHash is used when the password was hashed earlier.
type UserToCreate struct {
	Email        string
	Password     string
	PasswordHash string
	DisplayName  string
	Role         entities.Role
	Profile      entities.StudentProfile
	Disabled     bool
}

// Provider issues and verifies ID tokens for accounts stored in the database.
type Provider struct {
	users  *users.Repository
	config config.Identity
	secret []byte
	now    func() time.Time
}

// NewProvider creates a token authority. When no signing secret is configured
// a random one is generated and tokens do not survive a restart.
func NewProvider(repo *users.Repository, cfg config.Identity) (*Provider, error) {
	secret := cfg.TokenSecret
	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		secret = generated
		log.Warn().Msg("IDENTITY_TOKEN_SECRET not set, generated an ephemeral signing secret")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = config.DefaultIssuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Provider{
		users:  repo,
		config: cfg,
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates an account. The role, when set, becomes the role claim.
func (p *Provider) CreateUser(ctx context.Context, params UserToCreate) (*entities.User, error) {
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := validation.Validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if params.Role != "" && !params.Role.Valid() {
		return nil, ErrInvalidRole
	}

	hash := params.PasswordHash
	if hash == "" {
		var err error
		hash, err = HashPassword(params.Password, p.config.BcryptCost)
		if err != nil {
			return nil, err
		}
	}

	user := &entities.User{
		ID:             uuid.NewString(),
		Email:          email,
		DisplayName:    strings.TrimSpace(params.DisplayName),
		PasswordHash:   hash,
		ClaimRole:      string(params.Role),
		StudentProfile: params.Profile,
		Active:         true,
	}
	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	// gorm skips zero values on insert, so the column default would win.
	if params.Disabled {
		if err := p.users.SetActive(ctx, user.ID, false); err != nil {
			return nil, err
		}
		user.Active = false
	}

	log.Info().Str("user_id", user.ID).Str("role", user.ClaimRole).Msg("Created user")
	return user, nil
}

// GetUser looks up an account by id.
func (p *Provider) GetUser(ctx context.Context, uid string) (*entities.User, error) {
	user, err := p.users.GetByID(ctx, uid)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail looks up an account by email.
func (p *Provider) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	user, err := p.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// SetCustomClaims sets the role claim minted into future tokens. An empty
// role removes the claim.
func (p *Provider) SetCustomClaims(ctx context.Context, uid string, role entities.Role) error {
	if role != "" && !role.Valid() {
		return ErrInvalidRole
	}
	err := p.users.SetClaimRole(ctx, uid, string(role))
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// SetDisabled blocks or restores sign-in. Disabling also revokes issued tokens.
func (p *Provider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	err := p.users.SetActive(ctx, uid, !disabled)
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil || !disabled {
		return err
	}
	return p.RevokeRefreshTokens(ctx, uid)
}

// SignInWithPassword checks the credentials and mints an ID token.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	user, err := p.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserDisabled
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	token, err := p.mint(user)
	if err != nil {
		return nil, err
	}
	if err := p.users.TouchLogin(ctx, user.ID, p.now()); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record login time")
	}
	return token, nil
}

func (p *Provider) mint(user *entities.User) (*Token, error) {
	now := p.now()
	expires := now.Add(p.config.TokenTTL)
	claims := &Claims{
		Email:      user.Email,
		Name:       user.DisplayName,
		Role:       user.ClaimRole,
		Generation: user.TokenGeneration,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.config.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{IDToken: signed, ExpiresAt: expires, User: user, Claims: claims}, nil
}

// VerifyIDToken checks the signature, issuer and expiry of raw and that the
// token was not revoked.
func (p *Provider) VerifyIDToken(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := p.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserDisabled
	}
	if user.TokenGeneration != claims.Generation {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeRefreshTokens invalidates every token issued to the user so far.
func (p *Provider) RevokeRefreshTokens(ctx context.Context, uid string) error {
	err := p.users.BumpTokenGeneration(ctx, uid)
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// GeneratePasswordResetCode creates a single-use reset code for the account
// with this email. Only the hash of the code is stored.
func (p *Provider) GeneratePasswordResetCode(ctx context.Context, email string) (string, error) {
	user, err := p.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	code, hash, err := newResetCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	err = p.users.SaveResetCode(ctx, &entities.PasswordResetCode{
		CodeHash:  hash,
		UserID:    user.ID,
		ExpiresAt: p.now().Add(p.config.ResetTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store reset code: %w", err)
	}
	return code, nil
}

// ConfirmPasswordReset consumes code and sets a new password. Existing tokens
// are revoked.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	hash, err := HashPassword(newPassword, p.config.BcryptCost)
	if err != nil {
		return err
	}

	reset, err := p.users.ConsumeResetCode(ctx, hashCode(code), p.now())
	if errors.Is(err, users.ErrCodeInvalid) {
		return ErrInvalidResetCode
	}
	if err != nil {
		return err
	}

	if err := p.users.SetPasswordHash(ctx, reset.UserID, hash); err != nil {
		return err
	}
	return p.RevokeRefreshTokens(ctx, reset.UserID)
}

// PurgeExpiredResetCodes removes expired and used reset codes.
func (p *Provider) PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	return p.users.DeleteExpiredResetCodes(ctx, now)
}
