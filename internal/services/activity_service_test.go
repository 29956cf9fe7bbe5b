package services

import (
	"context"
	"testing"
	"time"

	"estategate/internal/models"
	"estategate/internal/testutil"
	"estategate/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_RecordAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewActivityService(db)
	ctx := context.Background()

	userA, userB := uint(1), uint(2)
	svc.Record(ctx, &models.Activity{EstateID: 1, UserID: &userA, Action: models.ActionVisitorCodeCreated})
	svc.Record(ctx, &models.Activity{EstateID: 1, UserID: &userB, Action: models.ActionVisitorCodeVerified})
	svc.Record(ctx, &models.Activity{EstateID: 1, UserID: &userA, Action: models.ActionVisitorCodeCancelled,
		Metadata: map[string]interface{}{"code": "ABC123"}})
	svc.Record(ctx, &models.Activity{EstateID: 2, Action: models.ActionVisitorCodeExpired})

	all, total, err := svc.List(ctx, ActivityFilter{EstateID: 1}, pagination.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, models.ActionVisitorCodeCancelled, all[0].Action)
	assert.Equal(t, "ABC123", all[0].Metadata["code"])

	mine, total, err := svc.List(ctx, ActivityFilter{UserID: userA}, pagination.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)

	verified, total, err := svc.List(ctx, ActivityFilter{EstateID: 1, Action: models.ActionVisitorCodeVerified}, pagination.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, verified, 1)
	assert.Equal(t, userB, *verified[0].UserID)

	paged, total, err := svc.List(ctx, ActivityFilter{}, &pagination.PageParams{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, paged, 1)
}

func TestActivityService_ListDateRange(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewActivityService(db)
	ctx := context.Background()

	for _, at := range []time.Time{baseTime.Add(-48 * time.Hour), baseTime, baseTime.Add(48 * time.Hour)} {
		require.NoError(t, db.Create(&models.Activity{EstateID: 1, Action: models.ActionUserLogin, CreatedAt: at}).Error)
	}

	from := baseTime.Add(-time.Hour)
	to := baseTime.Add(time.Hour)
	got, total, err := svc.List(ctx, ActivityFilter{FromDate: &from, ToDate: &to}, pagination.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.Equal(baseTime))
}
