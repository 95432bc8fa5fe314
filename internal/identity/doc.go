// Package identity is the token authority behind sign-in.
//
// It owns user accounts, mints HS256 ID tokens that carry the user's role as
// a custom claim, verifies them, and handles password reset codes. Revoking
// a user's tokens bumps a per-user generation counter that every token
// embeds, so tokens minted before the bump fail verification.
//
//	provider, err := identity.NewProvider(users.NewRepository(db), cfg.Identity)
//	token, err := provider.SignInWithPassword(ctx, "student@test.edu", "validpass")
//	claims, err := provider.VerifyIDToken(ctx, token.IDToken)
package identity
