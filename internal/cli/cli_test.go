package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/markit/attendance/internal/config"
	"github.com/markit/attendance/internal/entities"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.Database{Path: filepath.Join(t.TempDir(), "test.db")},
		Identity: config.Identity{TokenSecret: "test", BcryptCost: bcrypt.MinCost},
	}
}

func TestCreateUserCommand_ParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing email", []string{"-password=secret123"}, "email required"},
		{"missing password", []string{"-email=a@college.edu"}, "password required"},
		{"unknown role", []string{"-email=a@college.edu", "-password=secret123", "-role=dean"}, "unknown role"},
		{"valid", []string{"-email=a@college.edu", "-password=secret123"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CREATE_USER_PASSWORD", "")
			cmd := NewCreateUserCommand(testConfig(t))
			err := cmd.ParseFlags(tt.args)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "admin", cmd.Role)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateUserAndSetRole(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	create := NewCreateUserCommand(cfg)
	create.Out = &out
	require.NoError(t, create.ParseFlags([]string{"-email=Dean@College.edu", "-password=secret123", "-name=Dean"}))
	require.NoError(t, create.Run())
	assert.Contains(t, out.String(), "Created admin account dean@college.edu")

	setRole := NewSetRoleCommand(cfg)
	setRole.Out = &out
	require.NoError(t, setRole.ParseFlags([]string{"-email=dean@college.edu", "-role=organizer"}))
	require.NoError(t, setRole.Run())
	assert.Contains(t, out.String(), "Set role of dean@college.edu to organizer")

	db, provider, err := openProvider(cfg.Database.Path, cfg.Identity)
	require.NoError(t, err)
	defer db.Close()

	user, err := provider.GetUserByEmail(context.Background(), "dean@college.edu")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleOrganizer, user.Role())
	assert.Equal(t, 1, user.TokenGeneration)
}

func TestSetRoleCommand_UnknownUser(t *testing.T) {
	cmd := NewSetRoleCommand(testConfig(t))
	require.NoError(t, cmd.ParseFlags([]string{"-email=ghost@college.edu", "-role=admin"}))

	err := cmd.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost@college.edu")
}
