// Package accounts handles organizer account requests and admin-driven
// account creation.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
	"github.com/markit/attendance/internal/validation"
)

var (
	ErrNotAccountRequest = errors.New("request does not ask for an account")
	ErrPasswordMissing   = errors.New("no password stored for this request")
)

// RequestStore persists contact-admin submissions.
type RequestStore interface {
	Upsert(ctx context.Context, req *entities.AccountRequest) error
	Get(ctx context.Context, email string) (*entities.AccountRequest, error)
	List(ctx context.Context, status entities.AccountRequestStatus) ([]entities.AccountRequest, error)
	MarkReviewed(ctx context.Context, email string, status entities.AccountRequestStatus, at time.Time) error
}

// UserCreator creates provider accounts.
type UserCreator interface {
	CreateUser(ctx context.Context, params identity.UserToCreate) (*entities.User, error)
}

// ApprovalNotifier tells a club that its account request was accepted.
type ApprovalNotifier interface {
	SendAccountApproved(ctx context.Context, email, teamName string) error
}

type Service struct {
	requests   RequestStore
	users      UserCreator
	notifier   ApprovalNotifier
	bcryptCost int
	now        func() time.Time
}

func NewService(requests RequestStore, users UserCreator, bcryptCost int) *Service {
	return &Service{
		requests:   requests,
		users:      users,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// SetNotifier enables approval emails.
func (s *Service) SetNotifier(n ApprovalNotifier) {
	s.notifier = n
}

// RequestAccount validates and stores a contact-admin submission. Account
// requests keep only the hash of the chosen password.
func (s *Service) RequestAccount(ctx context.Context, in RequestInput) (*entities.AccountRequest, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}

	req := &entities.AccountRequest{
		Email:         identity.NormalizeEmail(in.Email),
		Subject:       strings.TrimSpace(in.Subject),
		Message:       strings.TrimSpace(in.Message),
		TeamName:      strings.TrimSpace(in.TeamName),
		NodalOfficer:  strings.TrimSpace(in.NodalOfficer),
		PhoneNumber:   in.PhoneNumber,
		ContactNumber: in.ContactNumber,
	}
	if in.IsAccountRequest() {
		hash, err := identity.HashPassword(in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		req.PasswordHash = hash
	}

	if err := s.requests.Upsert(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to store account request: %w", err)
	}
	log.Info().Str("email", req.Email).Str("subject", req.Subject).Msg("Stored account request")
	return req, nil
}

// Accept creates the requested account and marks the request verified.
func (s *Service) Accept(ctx context.Context, in AcceptInput) (*entities.User, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	role := entities.RoleOrganizer
	if in.Role != "" {
		parsed, ok := entities.ParseRole(in.Role)
		if !ok {
			return nil, identity.ErrInvalidRole
		}
		role = parsed
	}

	req, err := s.requests.Get(ctx, identity.NormalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if req.Status != entities.AccountRequestPending {
		return nil, fmt.Errorf("%s: %w", req.Email, errAlreadyReviewed(req.Status))
	}
	if req.Subject != AccountRequestSubject {
		return nil, ErrNotAccountRequest
	}
	if in.Password == "" && req.PasswordHash == "" {
		return nil, ErrPasswordMissing
	}

	user, err := s.users.CreateUser(ctx, identity.UserToCreate{
		Email:        req.Email,
		Password:     in.Password,
		PasswordHash: passwordHashUnless(in.Password, req.PasswordHash),
		DisplayName:  req.TeamName,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	if err := s.requests.MarkReviewed(ctx, req.Email, entities.AccountRequestVerified, s.now()); err != nil {
		return nil, fmt.Errorf("account created but request not updated: %w", err)
	}
	log.Info().Str("email", req.Email).Str("role", role.String()).Msg("Accepted account request")

	if s.notifier != nil {
		if err := s.notifier.SendAccountApproved(ctx, req.Email, req.TeamName); err != nil {
			log.Warn().Err(err).Str("email", req.Email).Msg("Failed to send approval email")
		}
	}
	return user, nil
}

// Reject marks a pending request rejected.
func (s *Service) Reject(ctx context.Context, email string) error {
	email = identity.NormalizeEmail(email)
	if err := s.requests.MarkReviewed(ctx, email, entities.AccountRequestRejected, s.now()); err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("Rejected account request")
	return nil
}

// ListRequests returns stored requests with the status, or all of them.
func (s *Service) ListRequests(ctx context.Context, status entities.AccountRequestStatus) ([]entities.AccountRequest, error) {
	return s.requests.List(ctx, status)
}

// CreateUser creates a student account.
func (s *Service) CreateUser(ctx context.Context, in NewUserInput) (*entities.User, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, identity.UserToCreate{
		Email:    in.Email,
		Password: in.Password,
		Role:     entities.RoleStudent,
	})
}

// CreateStudent enrols a student with their profile. The admission number
// is the initial password.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (*entities.User, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	return s.users.CreateUser(ctx, identity.UserToCreate{
		Email:       in.Email,
		Password:    in.AdmissionNo,
		DisplayName: in.Name,
		Role:        entities.RoleStudent,
		Profile: entities.StudentProfile{
			AdmissionNo: strings.TrimSpace(in.AdmissionNo),
			RollNo:      strings.TrimSpace(in.RollNo),
			Department:  strings.TrimSpace(in.Department),
			Section:     strings.TrimSpace(in.Section),
			JoinedYear:  in.JoinedYear,
		},
		Disabled: !in.Active,
	})
}

func passwordHashUnless(password, hash string) string {
	if password != "" {
		return ""
	}
	return hash
}
