// Package requests stores organizer account requests submitted through the
// contact-admin form.
package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/markit/attendance/internal/entities"
)

var (
	ErrNotFound       = errors.New("account request not found")
	ErrAlreadyHandled = errors.New("account request already reviewed")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores a pending request. A pending request for the same email is
// replaced; a reviewed one is left untouched and ErrAlreadyHandled is returned.
func (r *Repository) Upsert(ctx context.Context, req *entities.AccountRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.AccountRequest
		err := tx.Where("email = ?", req.Email).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("failed to load account request: %w", err)
		case existing.Status != entities.AccountRequestPending:
			return ErrAlreadyHandled
		}

		req.Status = entities.AccountRequestPending
		req.ReviewedAt = nil
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(req).Error
	})
}

func (r *Repository) Get(ctx context.Context, email string) (*entities.AccountRequest, error) {
	var req entities.AccountRequest
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests with the given status, newest first. An empty status
// lists everything.
func (r *Repository) List(ctx context.Context, status entities.AccountRequestStatus) ([]entities.AccountRequest, error) {
	var list []entities.AccountRequest
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list account requests: %w", err)
	}
	return list, nil
}

// MarkReviewed moves a pending request to status.
func (r *Repository) MarkReviewed(ctx context.Context, email string, status entities.AccountRequestStatus, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entities.AccountRequest{}).
		Where("email = ? AND status = ?", email, entities.AccountRequestPending).
		Updates(map[string]any{"status": status, "reviewed_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to update account request: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, email); err != nil {
		return err
	}
	return ErrAlreadyHandled
}
