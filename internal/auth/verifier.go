package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

// TokenAuthority is the part of the identity provider the Verifier uses.
type TokenAuthority interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Token, error)
	VerifyIDToken(ctx context.Context, raw string) (*identity.Claims, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	GeneratePasswordResetCode(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// ResetMailer delivers password reset codes.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, code string) error
}

// Credential is the result of a successful sign-in.
type Credential struct {
	Identity  *entities.Identity
	IDToken   string
	ExpiresAt time.Time
}

// Verifier exchanges credentials for ID tokens and decodes their claims. It
// keeps no state of its own.
type Verifier struct {
	authority TokenAuthority
	mailer    ResetMailer
}

func NewVerifier(authority TokenAuthority, mailer ResetMailer) *Verifier {
	return &Verifier{authority: authority, mailer: mailer}
}

// SignIn checks email and password. The returned identity carries the role
// claim of the minted token, or the default role when the claim is absent.
func (v *Verifier) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	token, err := v.authority.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, classify(err)
	}
	return &Credential{
		Identity:  token.Claims.Identity(),
		IDToken:   token.IDToken,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// SignOut revokes the tokens of the user owning idToken. Failures are logged
// and otherwise ignored.
func (v *Verifier) SignOut(ctx context.Context, idToken string) {
	if idToken == "" {
		return
	}
	claims, err := v.authority.VerifyIDToken(ctx, idToken)
	if err != nil {
		log.Debug().Err(err).Msg("Sign-out with unusable token, nothing to revoke")
		return
	}
	if err := v.authority.RevokeRefreshTokens(ctx, claims.UserID()); err != nil {
		log.Warn().Err(err).Str("user_id", claims.UserID()).Msg("Failed to revoke tokens on sign-out")
	}
}

// SendPasswordReset mails a reset code to the account with this email.
func (v *Verifier) SendPasswordReset(ctx context.Context, email string) error {
	code, err := v.authority.GeneratePasswordResetCode(ctx, email)
	if err != nil {
		return classify(err)
	}
	if err := v.mailer.SendPasswordReset(ctx, identity.NormalizeEmail(email), code); err != nil {
		return &AuthError{Kind: KindNetwork, Err: err}
	}
	return nil
}

// ConfirmPasswordReset sets a new password. Validation errors from the
// identity package are returned unchanged.
func (v *Verifier) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	return v.authority.ConfirmPasswordReset(ctx, code, newPassword)
}

// Identify verifies idToken and returns the identity it carries.
func (v *Verifier) Identify(ctx context.Context, idToken string) (*entities.Identity, error) {
	claims, err := v.verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

func (v *Verifier) verify(ctx context.Context, idToken string) (*identity.Claims, error) {
	claims, err := v.authority.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

// classify maps identity provider errors to AuthError kinds. Anything the
// provider did not reject on its own merits counts as a network failure.
func classify(err error) error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return &AuthError{Kind: KindUserNotFound, Err: err}
	case errors.Is(err, identity.ErrInvalidPassword),
		errors.Is(err, identity.ErrUserDisabled),
		errors.Is(err, identity.ErrEmailRequired),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrTokenExpired),
		errors.Is(err, identity.ErrTokenRevoked):
		return &AuthError{Kind: KindInvalidCredentials, Err: err}
	default:
		return &AuthError{Kind: KindNetwork, Err: err}
	}
}

// ClaimCache verifies one client's ID token at most once and serves the
// result to every gate mounted for that client.
type ClaimCache struct {
	verifier *Verifier
	token    string

	once   sync.Once
	claims *identity.Claims
	err    error
}

var errNoToken = &AuthError{Kind: KindInvalidCredentials, Err: errors.New("no token")}

// NewClaimCache returns a cache for idToken. An empty token resolves to an
// invalid-credentials error.
func (v *Verifier) NewClaimCache(idToken string) *ClaimCache {
	return &ClaimCache{verifier: v, token: idToken}
}

// Claims verifies the token on first use.
func (c *ClaimCache) Claims(ctx context.Context) (*identity.Claims, error) {
	c.once.Do(func() {
		if c.token == "" {
			c.err = errNoToken
			return
		}
		c.claims, c.err = c.verifier.verify(ctx, c.token)
	})
	return c.claims, c.err
}

// Identity returns the identity carried by the token.
func (c *ClaimCache) Identity(ctx context.Context) (*entities.Identity, error) {
	claims, err := c.Claims(ctx)
	if err != nil {
		return nil, err
	}
	return claims.Identity(), nil
}

// ResolveRole returns the role claim of the token, provided the token belongs
// to the given identity.
func (c *ClaimCache) ResolveRole(ctx context.Context, who *entities.Identity) (entities.Role, error) {
	claims, err := c.Claims(ctx)
	if err != nil {
		return "", err
	}
	if claims.UserID() != who.ID {
		return "", &AuthError{Kind: KindInvalidCredentials, Err: errors.New("token does not belong to identity")}
	}
	return claims.RoleOrDefault(), nil
}
