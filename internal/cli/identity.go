package cli

import (
	"fmt"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/identity"
)

// openProvider opens the database at path and returns an identity provider
// on top of it. The caller closes the database.
func openProvider(path string, cfg config.Identity) (*database.Database, *identity.Provider, error) {
	db, err := database.NewDatabase(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	provider, err := identity.NewProvider(users.NewRepository(db.DB), cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, provider, nil
}
