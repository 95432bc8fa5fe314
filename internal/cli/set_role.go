package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/entities"
)

// SetRoleCommand changes the role claim of an existing account. Tokens
// already issued keep the old claim until they are refreshed, so the
// account's sessions are revoked as well.
type SetRoleCommand struct {
	Email        string
	Role         string
	DatabasePath string

	Identity config.Identity
	Out      io.Writer
}

// NewSetRoleCommand creates a new SetRoleCommand
func NewSetRoleCommand(cfg *config.Config) *SetRoleCommand {
	return &SetRoleCommand{
		DatabasePath: cfg.Database.Path,
		Identity:     cfg.Identity,
		Out:          os.Stdout,
	}
}

// ParseFlags parses command line flags
func (cmd *SetRoleCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)

	fs.StringVar(&cmd.Email, "email", "", "Email address of the account")
	fs.StringVar(&cmd.Role, "role", "", "New role claim: student, organizer or admin (empty removes the claim)")
	fs.StringVar(&cmd.DatabasePath, "db", cmd.DatabasePath, "Path to the database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s set-role -email=<email> -role=<role>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Set the role claim of an account and sign it out everywhere.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email == "" {
		return fmt.Errorf("email required: use -email flag")
	}
	if _, ok := entities.ParseRole(cmd.Role); cmd.Role != "" && !ok {
		return fmt.Errorf("unknown role %q", cmd.Role)
	}
	return nil
}

// Run applies the role
func (cmd *SetRoleCommand) Run() error {
	db, provider, err := openProvider(cmd.DatabasePath, cmd.Identity)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	user, err := provider.GetUserByEmail(ctx, cmd.Email)
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", cmd.Email, err)
	}
	if err := provider.SetCustomClaims(ctx, user.ID, entities.Role(cmd.Role)); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if err := provider.RevokeRefreshTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("role set but sessions not revoked: %w", err)
	}

	role := cmd.Role
	if role == "" {
		role = "none (defaults to " + string(entities.DefaultRole) + ")"
	}
	fmt.Fprintf(cmd.Out, "Set role of %s to %s\n", user.Email, role)
	return nil
}
