// Package users provides database operations for identity provider accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail(ctx, "student@test.edu")
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/markit/attendance/internal/entities"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("email already in use")
	ErrCodeInvalid = errors.New("reset code invalid or expired")
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user. The email must not be taken.
func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return ErrEmailExists
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return notFound(&user, err)
}

// GetByEmail retrieves a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return notFound(&user, err)
}

// ListByRole returns the users whose role claim equals role, ordered by email.
func (r *Repository) ListByRole(ctx context.Context, role entities.Role) ([]entities.User, error) {
	var list []entities.User
	err := r.db.WithContext(ctx).Where("claim_role = ?", string(role)).Order("email").Find(&list).Error
	return list, err
}

// CountByRole returns the number of users per role claim.
func (r *Repository) CountByRole(ctx context.Context) (map[entities.Role]int64, error) {
	var rows []struct {
		ClaimRole string
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&entities.User{}).
		Select("claim_role, COUNT(*) AS count").
		Group("claim_role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[entities.Role]int64, len(rows))
	for _, row := range rows {
		counts[entities.Role(row.ClaimRole)] += row.Count
	}
	return counts, nil
}

// SetClaimRole stores the role custom claim. An empty role removes the claim.
func (r *Repository) SetClaimRole(ctx context.Context, id string, role string) error {
	return r.update(ctx, id, map[string]any{"claim_role": role})
}

// BumpTokenGeneration invalidates every token minted before the call.
func (r *Repository) BumpTokenGeneration(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).
		Update("token_generation", gorm.Expr("token_generation + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to revoke tokens: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces the stored password hash.
func (r *Repository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": hash})
}

// SetActive enables or disables sign-in for the account.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, map[string]any{"active": active})
}

// TouchLogin records a successful sign-in.
func (r *Repository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_login_at": at})
}

func (r *Repository) update(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResetCode stores a hashed password reset code.
func (r *Repository) SaveResetCode(ctx context.Context, code *entities.PasswordResetCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// ConsumeResetCode marks an unexpired, unused code as used and returns it.
func (r *Repository) ConsumeResetCode(ctx context.Context, codeHash string, now time.Time) (*entities.PasswordResetCode, error) {
	var code entities.PasswordResetCode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("code_hash = ? AND used_at IS NULL AND expires_at > ?", codeHash, now).First(&code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCodeInvalid
		}
		if err != nil {
			return err
		}
		return tx.Model(&code).Update("used_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// DeleteExpiredResetCodes removes codes that expired or were used before now.
func (r *Repository) DeleteExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ? OR used_at IS NOT NULL", now).
		Delete(&entities.PasswordResetCode{})
	return result.RowsAffected, result.Error
}

func notFound(user *entities.User, err error) (*entities.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
