// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── users/           # Identity provider accounts and reset codes
//	├── requests/        # Club account requests
//	└── events/          # Events, registrations and attendance
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./markit.db")
//	usersRepo := users.NewRepository(db.DB)
//	eventsRepo := events.NewRepository(db.DB)
//
// Each Repository wraps a *gorm.DB and returns the sentinel ErrNotFound of its
// package instead of gorm.ErrRecordNotFound.
package database
