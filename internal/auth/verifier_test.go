package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/session"
)

func TestVerifier_SignInThenCurrentCarriesRoleClaim(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "club@test.edu", "validpass", entities.RoleOrganizer)
	ctx := context.Background()

	cred, err := env.verifier.SignIn(ctx, "club@test.edu", "validpass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	store := session.NewStore()
	defer store.Close()
	store.Publish(cred.Identity)

	if got := store.Current(); got == nil || got.Role != entities.RoleOrganizer {
		t.Fatalf("expected organizer identity, got %+v", got)
	}
	claims, err := env.provider.VerifyIDToken(ctx, cred.IDToken)
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if claims.Role != string(store.Current().Role) {
		t.Errorf("cached role %q differs from claim %q", store.Current().Role, claims.Role)
	}
}

func TestVerifier_SignInErrors(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "student@test.edu", "validpass", entities.RoleStudent)

	tests := []struct {
		name     string
		email    string
		password string
		kind     AuthErrorKind
	}{
		{"wrong password", "student@test.edu", "nope-nope", KindInvalidCredentials},
		{"unknown email", "ghost@test.edu", "validpass", KindUserNotFound},
		{"empty email", "", "validpass", KindUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.verifier.SignIn(context.Background(), tt.email, tt.password)
			if !IsAuthError(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestVerifier_IdentifyAndSignOut(t *testing.T) {
	env := setupTestEnv(t)
	user := env.createUser(t, "admin@test.edu", "validpass", entities.RoleAdmin)
	ctx := context.Background()

	cred, err := env.verifier.SignIn(ctx, "admin@test.edu", "validpass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	who, err := env.verifier.Identify(ctx, cred.IDToken)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if who.ID != user.ID || who.Role != entities.RoleAdmin {
		t.Errorf("unexpected identity %+v", who)
	}

	env.verifier.SignOut(ctx, cred.IDToken)
	env.verifier.SignOut(ctx, cred.IDToken)
	env.verifier.SignOut(ctx, "garbage")
	env.verifier.SignOut(ctx, "")

	if _, err := env.verifier.Identify(ctx, cred.IDToken); !IsAuthError(err, KindInvalidCredentials) {
		t.Errorf("expected revoked token to be rejected, got %v", err)
	}
}

func TestVerifier_SendPasswordReset(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "student@test.edu", "validpass", entities.RoleStudent)
	ctx := context.Background()

	if err := env.verifier.SendPasswordReset(ctx, "ghost@test.edu"); !IsAuthError(err, KindUserNotFound) {
		t.Errorf("expected user-not-found, got %v", err)
	}

	if err := env.verifier.SendPasswordReset(ctx, "Student@test.edu"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if env.mailer.codes["student@test.edu"] == "" {
		t.Error("expected a reset code to be mailed")
	}

	env.mailer.err = errors.New("smtp down")
	if err := env.verifier.SendPasswordReset(ctx, "student@test.edu"); !IsAuthError(err, KindNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
}

func TestClaimCache(t *testing.T) {
	env := setupTestEnv(t)
	env.createUser(t, "club@test.edu", "validpass", entities.RoleOrganizer)
	ctx := context.Background()

	cred, err := env.verifier.SignIn(ctx, "club@test.edu", "validpass")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	env.authority.reset()

	cache := env.verifier.NewClaimCache(cred.IDToken)
	for i := 0; i < 3; i++ {
		role, err := cache.ResolveRole(ctx, cred.Identity)
		if err != nil || role != entities.RoleOrganizer {
			t.Fatalf("ResolveRole = %v, %v", role, err)
		}
	}
	if n := env.authority.reset(); n != 1 {
		t.Errorf("expected a single verification, got %d", n)
	}

	stranger := &entities.Identity{ID: "someone-else", Role: entities.RoleOrganizer}
	if _, err := cache.ResolveRole(ctx, stranger); err == nil {
		t.Error("token must not resolve a role for another identity")
	}

	if _, err := env.verifier.NewClaimCache("").Identity(ctx); !IsAuthError(err, KindInvalidCredentials) {
		t.Errorf("empty token should be invalid credentials, got %v", err)
	}
}

func TestAuthError_Messages(t *testing.T) {
	for kind, want := range map[AuthErrorKind]string{
		KindInvalidCredentials: "Invalid email or password",
		KindUserNotFound:       "No account found for this email",
		KindNetwork:            "Sign-in is temporarily unavailable. Please try again.",
	} {
		if got := (&AuthError{Kind: kind}).Message(); got != want {
			t.Errorf("%s: got %q, want %q", kind, got, want)
		}
	}
}
