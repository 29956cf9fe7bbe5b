package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"estategate/internal/models"
	"estategate/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t)
	orig := openDB
	openDB = func() (*gorm.DB, func(), error) {
		return db, func() {}, nil
	}
	t.Cleanup(func() { openDB = orig })
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCmd(t *testing.T) {
	useTestDB(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration completed.")
}

func TestAccountCmds(t *testing.T) {
	db := useTestDB(t)

	out, err := run(t, "estate", "create", "--name", "绿城小区", "--code", "greenwood")
	require.NoError(t, err)
	assert.Contains(t, out, "(greenwood) created.")

	out, err = run(t, "user", "create",
		"--estate", "greenwood",
		"--username", "guard_bola",
		"--email", "bola@example.com",
		"--password", "secret123",
		"--name", "Bola Ade",
		"--role", "maintainer",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "guard_bola, maintainer")

	var user models.User
	require.NoError(t, db.Where("username = ?", "guard_bola").First(&user).Error)
	assert.Equal(t, models.RoleMaintainer, user.Role)
	assert.True(t, user.CheckPassword("secret123"))

	_, err = run(t, "user", "create",
		"--estate", "nowhere",
		"--username", "x_user",
		"--email", "x@example.com",
		"--password", "secret123",
		"--name", "Nobody",
	)
	assert.EqualError(t, err, `estate "nowhere" not found`)
}

func TestExpireCmd(t *testing.T) {
	db := useTestDB(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, code := range []string{"OLD001", "OLD002", "NEW001"} {
		expires := at.Add(-time.Minute)
		if i == 2 {
			expires = at.Add(time.Hour)
		}
		require.NoError(t, db.Create(&models.VisitorCode{
			UserID: 1, EstateID: 1, VisitorName: "V", Destination: "D", NumberOfVisitors: 1,
			Code: code, ExpiresAt: expires, Status: models.VisitorCodeStatusPending,
		}).Error)
	}

	out, err := run(t, "expire", "--at", at.Format(time.RFC3339))
	require.NoError(t, err)
	assert.Contains(t, out, "2 visitor code(s) expired.")

	out, err = run(t, "expire", "--at", at.Format(time.RFC3339), "--format", "json")
	require.NoError(t, err)
	var result struct {
		Expired int64  `json:"expired"`
		At      string `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Zero(t, result.Expired)
	assert.Equal(t, "2026-03-01T12:00:00Z", result.At)

	_, err = run(t, "expire", "--at", "tomorrow")
	assert.Error(t, err)
}
