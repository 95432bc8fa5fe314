package accounts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/database/requests"
	"github.com/markit/attendance/internal/database/users"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/identity"
	"github.com/markit/attendance/internal/validation"
)

type testEnv struct {
	service  *Service
	provider *identity.Provider
	requests *requests.Repository
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.PasswordResetCode{}, &entities.AccountRequest{}))

	provider, err := identity.NewProvider(users.NewRepository(db), config.Identity{
		TokenSecret: "test-secret",
		Issuer:      "test-issuer",
		TokenTTL:    time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	require.NoError(t, err)

	reqs := requests.NewRepository(db)
	return &testEnv{
		service:  NewService(reqs, provider, bcrypt.MinCost),
		provider: provider,
		requests: reqs,
	}
}

func validRequest() RequestInput {
	return RequestInput{
		Email:        "Club@Test.edu",
		Subject:      AccountRequestSubject,
		Message:      "Please create an account for our club",
		TeamName:     "Robotics",
		Password:     "clubpass",
		NodalOfficer: "Dr. Rao",
		PhoneNumber:  "9876543210",
	}
}

func TestRequestInput_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RequestInput)
		want   map[string]string
	}{
		{
			name:   "valid account request",
			mutate: func(*RequestInput) {},
		},
		{
			name: "plain message needs no account fields",
			mutate: func(in *RequestInput) {
				in.Subject = "General Query"
				in.TeamName, in.Password, in.NodalOfficer, in.PhoneNumber = "", "", "", ""
			},
		},
		{
			name:   "short team name",
			mutate: func(in *RequestInput) { in.TeamName = "AB" },
			want:   map[string]string{"team_name": "team_name must be at least 3 characters in length"},
		},
		{
			name:   "short password",
			mutate: func(in *RequestInput) { in.Password = "12345" },
			want:   map[string]string{"password": "password must be at least 6 characters in length"},
		},
		{
			name: "missing account fields",
			mutate: func(in *RequestInput) {
				in.TeamName, in.Password, in.NodalOfficer, in.PhoneNumber = "", "", "", ""
			},
			want: map[string]string{
				"team_name":     "team_name is required for an account request",
				"password":      "password is required for an account request",
				"Nodal_Officer": "Nodal_Officer is required for an account request",
				"phone_number":  "phone_number is required for an account request",
			},
		},
		{
			name:   "phone with letters",
			mutate: func(in *RequestInput) { in.PhoneNumber = "98765abcde" },
			want:   map[string]string{"phone_number": "phone_number must be 10 digits and only contain numbers"},
		},
		{
			name:   "contact number too short",
			mutate: func(in *RequestInput) { in.ContactNumber = "12345" },
			want:   map[string]string{"contact_number": "contact_number must be 10 digits and only contain numbers"},
		},
		{
			name: "bad email and blank message",
			mutate: func(in *RequestInput) {
				in.Email = "not-an-email"
				in.Message = "  "
			},
			want: map[string]string{
				"email":   "email must be a valid email address",
				"message": "message cannot be blank",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRequest()
			tt.mutate(&in)
			err := validation.Check(in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			fields, ok := validation.Fields(err)
			require.True(t, ok, "expected a validation error, got %v", err)
			assert.Equal(t, tt.want, fields)
		})
	}
}

func TestService_RequestAccountStoresHashedPassword(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	stored, err := env.service.RequestAccount(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "club@test.edu", stored.Email)
	assert.Equal(t, entities.AccountRequestPending, stored.Status)
	assert.NotEqual(t, "clubpass", stored.PasswordHash)
	assert.NoError(t, identity.CheckPassword("clubpass", stored.PasswordHash))

	// A second submission replaces the pending one.
	again := validRequest()
	again.TeamName = "Robotics Club"
	_, err = env.service.RequestAccount(ctx, again)
	require.NoError(t, err)

	list, err := env.service.ListRequests(ctx, entities.AccountRequestPending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Robotics Club", list[0].TeamName)
}

func TestService_PlainMessageHasNoPassword(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	in := validRequest()
	in.Subject = "General Query"
	stored, err := env.service.RequestAccount(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)

	_, err = env.service.Accept(ctx, AcceptInput{Email: in.Email})
	assert.ErrorIs(t, err, ErrNotAccountRequest)
}

func TestService_AcceptCreatesOrganizer(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.RequestAccount(ctx, validRequest())
	require.NoError(t, err)

	user, err := env.service.Accept(ctx, AcceptInput{Email: "club@test.edu"})
	require.NoError(t, err)
	assert.Equal(t, "Robotics", user.DisplayName)
	assert.Equal(t, entities.RoleOrganizer, user.Role())

	token, err := env.provider.SignInWithPassword(ctx, "club@test.edu", "clubpass")
	require.NoError(t, err)
	assert.Equal(t, "organizer", token.Claims.Role)

	req, err := env.requests.Get(ctx, "club@test.edu")
	require.NoError(t, err)
	assert.Equal(t, entities.AccountRequestVerified, req.Status)
	assert.NotNil(t, req.ReviewedAt)

	_, err = env.service.Accept(ctx, AcceptInput{Email: "club@test.edu"})
	assert.ErrorIs(t, err, requests.ErrAlreadyHandled)

	// Reviewed requests cannot be resubmitted.
	_, err = env.service.RequestAccount(ctx, validRequest())
	assert.ErrorIs(t, err, requests.ErrAlreadyHandled)
}

type recordingNotifier struct {
	emails []string
}

func (n *recordingNotifier) SendAccountApproved(_ context.Context, email, teamName string) error {
	n.emails = append(n.emails, email+"/"+teamName)
	return nil
}

func TestService_AcceptNotifiesClub(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	env.service.SetNotifier(notifier)

	_, err := env.service.RequestAccount(ctx, validRequest())
	require.NoError(t, err)
	_, err = env.service.Accept(ctx, AcceptInput{Email: "club@test.edu"})
	require.NoError(t, err)

	assert.Equal(t, []string{"club@test.edu/Robotics"}, notifier.emails)
}

func TestService_AcceptWithPasswordAndRole(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.RequestAccount(ctx, validRequest())
	require.NoError(t, err)

	user, err := env.service.Accept(ctx, AcceptInput{Email: "club@test.edu", Password: "override", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, user.Role())

	_, err = env.provider.SignInWithPassword(ctx, "club@test.edu", "override")
	assert.NoError(t, err)
}

func TestService_AcceptErrors(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.Accept(ctx, AcceptInput{Email: "nobody@test.edu"})
	assert.ErrorIs(t, err, requests.ErrNotFound)

	_, err = env.service.Accept(ctx, AcceptInput{Email: "club@test.edu", Role: "root"})
	_, isValidation := validation.Fields(err)
	assert.True(t, isValidation)
}

func TestService_Reject(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.RequestAccount(ctx, validRequest())
	require.NoError(t, err)
	require.NoError(t, env.service.Reject(ctx, "CLUB@test.edu"))

	rejected, err := env.service.ListRequests(ctx, entities.AccountRequestRejected)
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	assert.ErrorIs(t, env.service.Reject(ctx, "club@test.edu"), requests.ErrAlreadyHandled)
	assert.ErrorIs(t, env.service.Reject(ctx, "nobody@test.edu"), requests.ErrNotFound)
}

func TestService_CreateUser(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	user, err := env.service.CreateUser(ctx, NewUserInput{Email: "student@test.edu", Password: "validpass"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleStudent, user.Role())

	_, err = env.service.CreateUser(ctx, NewUserInput{Email: "student@test.edu", Password: "validpass"})
	assert.ErrorIs(t, err, identity.ErrEmailExists)

	_, err = env.service.CreateUser(ctx, NewUserInput{Email: "other@test.edu", Password: "123"})
	fields, ok := validation.Fields(err)
	require.True(t, ok)
	assert.Contains(t, fields, "password")
}

func TestService_CreateStudent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	in := StudentInput{
		Name:        "Asha Verma",
		Email:       "asha@test.edu",
		AdmissionNo: "ADM2023001",
		RollNo:      "21CS042",
		Department:  "CSE",
		Section:     "B",
		JoinedYear:  2023,
		Active:      true,
	}
	user, err := env.service.CreateStudent(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "ADM2023001", user.AdmissionNo)
	assert.Equal(t, 2023, user.JoinedYear)
	assert.True(t, user.Active)

	token, err := env.provider.SignInWithPassword(ctx, "asha@test.edu", "ADM2023001")
	require.NoError(t, err)
	assert.Equal(t, "student", token.Claims.Role)

	short := in
	short.Email = "short@test.edu"
	short.AdmissionNo = "A123"
	_, err = env.service.CreateStudent(ctx, short)
	fields, ok := validation.Fields(err)
	require.True(t, ok)
	assert.Equal(t, "admissionNo must be at least 6 characters in length", fields["admissionNo"])

	inactive := in
	inactive.Email = "inactive@test.edu"
	inactive.Active = false
	user, err = env.service.CreateStudent(ctx, inactive)
	require.NoError(t, err)
	assert.False(t, user.Active)
	_, err = env.provider.SignInWithPassword(ctx, "inactive@test.edu", "ADM2023001")
	assert.ErrorIs(t, err, identity.ErrUserDisabled)
}
