package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/tests/testutil"
)

func archived(id string, read bool, age time.Duration) model.Notification {
	now := time.Now().UTC().Add(-age)
	return model.Notification{
		ID:        id,
		Type:      model.TypeSystem,
		Priority:  model.PriorityNormal,
		Title:     "n-" + id,
		Read:      read,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpsert_and_Recent_newest_first(t *testing.T) {
	a := testutil.NewTestArchive(t)
	ctx := context.Background()

	err := a.Upsert(ctx, []model.Notification{
		archived("old", true, 2*time.Hour),
		archived("new", false, time.Minute),
	})
	require.NoError(t, err)

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestUpsert_deduplicates_by_id(t *testing.T) {
	a := testutil.NewTestArchive(t)
	ctx := context.Background()

	n := archived("1", false, time.Hour)
	require.NoError(t, a.Upsert(ctx, []model.Notification{n}))

	n.Read = true
	n.Title = "updated"
	require.NoError(t, a.Upsert(ctx, []model.Notification{n}))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Read)
	assert.Equal(t, "updated", got[0].Title)
}

func TestMarkRead_flags_given_ids(t *testing.T) {
	a := testutil.NewTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Upsert(ctx, []model.Notification{
		archived("1", false, time.Hour),
		archived("2", false, time.Minute),
	}))

	require.NoError(t, a.MarkRead(ctx, []string{"1"}))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Read) // id 2, newest
	assert.True(t, got[1].Read)  // id 1
}

func TestDelete_and_Clear(t *testing.T) {
	a := testutil.NewTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Upsert(ctx, []model.Notification{
		archived("1", false, time.Hour),
		archived("2", false, time.Minute),
	}))

	require.NoError(t, a.Delete(ctx, []string{"1"}))
	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, a.Clear(ctx))
	got, err = a.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrune_by_age_and_count(t *testing.T) {
	a := testutil.NewTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Upsert(ctx, []model.Notification{
		archived("ancient", true, 48*time.Hour),
		archived("recent-1", false, time.Hour),
		archived("recent-2", false, 30*time.Minute),
		archived("recent-3", false, time.Minute),
	}))

	require.NoError(t, a.Prune(ctx, 24*time.Hour, 2))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "recent-3", got[0].ID)
	assert.Equal(t, "recent-2", got[1].ID)
}
