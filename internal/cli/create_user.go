package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
)

// CreateUserCommand creates an account directly in the identity store.
// It is how the first admin gets created.
type CreateUserCommand struct {
	Email        string
	Password     string
	DisplayName  string
	Role         string
	DatabasePath string

	Identity config.Identity
	Out      io.Writer
}

// NewCreateUserCommand creates a new CreateUserCommand
func NewCreateUserCommand(cfg *config.Config) *CreateUserCommand {
	return &CreateUserCommand{
		DatabasePath: cfg.Database.Path,
		Identity:     cfg.Identity,
		Out:          os.Stdout,
	}
}

// ParseFlags parses command line flags
func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.Email, "email", "", "Email address of the new account")
	fs.StringVar(&cmd.Password, "password", os.Getenv("CREATE_USER_PASSWORD"), "Initial password (or set CREATE_USER_PASSWORD)")
	fs.StringVar(&cmd.DisplayName, "name", "", "Display name")
	fs.StringVar(&cmd.Role, "role", string(entities.RoleAdmin), "Role claim: student, organizer or admin")
	fs.StringVar(&cmd.DatabasePath, "db", cmd.DatabasePath, "Path to the database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user -email=<email> -password=<password> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an account. Defaults to an admin account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email == "" {
		return fmt.Errorf("email required: use -email flag")
	}
	if cmd.Password == "" {
		return fmt.Errorf("password required: use -password flag or set CREATE_USER_PASSWORD")
	}
	if _, ok := entities.ParseRole(cmd.Role); !ok {
		return fmt.Errorf("unknown role %q", cmd.Role)
	}
	return nil
}

// Run creates the account
func (cmd *CreateUserCommand) Run() error {
	db, provider, err := openProvider(cmd.DatabasePath, cmd.Identity)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := provider.CreateUser(context.Background(), identity.UserToCreate{
		Email:       cmd.Email,
		Password:    cmd.Password,
		DisplayName: cmd.DisplayName,
		Role:        entities.Role(cmd.Role),
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.Out, "Created %s account %s (uid %s)\n", user.Role(), user.Email, user.ID)
	return nil
}
