package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"badge-progress-system/catalog"
	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/store"
	"badge-progress-system/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "0xAbC0000000000000000000000000000000000001"

func newTestService(t *testing.T) (*ProgressService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	eng := engine.New(engine.WithClock(func() int64 { return 1_000_000 }))
	return NewProgressService(catalog.Default(), st, eng), st
}

func snapshotRecord(badgeID string, count, at int64) wire.Record {
	return wire.Record{UserAddress: user, BadgeID: badgeID, Update: models.Snapshot(count, at)}
}

func TestApply_LeveledSnapshot(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	res, err := svc.Apply(ctx, snapshotRecord(catalog.BadgeTraveler, 60, 100))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.Len(t, res.NewTiers, 2)
	assert.Equal(t, "traveler-starter", res.NewTiers[0].TierID)
	assert.Equal(t, "traveler-bronze", res.NewTiers[1].TierID)
	assert.Equal(t, int64(1_000_000), res.Progress.UpdatedAt)

	again, err := svc.Apply(ctx, snapshotRecord(catalog.BadgeTraveler, 60, 100))
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, res.Progress, again.Progress)

	stored, err := st.Fetch(ctx, models.NewProgressKey(user, catalog.BadgeTraveler))
	require.NoError(t, err)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", stored.UserAddress)
	assert.Equal(t, int64(60), stored.Progress.Count)
}

func TestApply_Errors(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, snapshotRecord("no-such-badge", 1, 1))
	require.ErrorIs(t, err, engine.ErrNotFound)
	assert.True(t, IsRecordError(err))

	_, err = svc.Apply(ctx, wire.Record{UserAddress: user, BadgeID: catalog.BadgeTraveler, Update: models.UniqueEventUpdate{CompletedAt: 1}})
	require.ErrorIs(t, err, engine.ErrValidation)
	assert.Zero(t, st.Len(), "rejected updates write nothing")

	_, err = svc.Apply(ctx, snapshotRecord(catalog.BadgeTraveler, 300, 5))
	require.NoError(t, err)
	_, err = svc.Apply(ctx, snapshotRecord(catalog.BadgeTraveler, 200, 6))
	require.ErrorIs(t, err, engine.ErrRegression)

	got, err := svc.Get(ctx, user, catalog.BadgeTraveler)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Progress.Progress.Count)
}

func TestApply_DuplicateEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec := wire.Record{EventID: "evt-7", UserAddress: user, BadgeID: catalog.BadgeWalkabout, Update: models.Increment(500, 10)}
	_, err := svc.Apply(ctx, rec)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, rec)
	require.ErrorIs(t, err, store.ErrDuplicateEvent)

	got, err := svc.Get(ctx, user, catalog.BadgeWalkabout)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Progress.Progress.Count, "redelivered delta is not double counted")
}

func TestGetAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	empty, err := svc.Get(ctx, user, catalog.BadgeTraveler)
	require.NoError(t, err)
	assert.Nil(t, empty.Progress)
	require.NotNil(t, empty.NextTier)
	assert.Equal(t, "traveler-starter", empty.NextTier.TierID)

	_, err = svc.Get(ctx, user, "no-such-badge")
	require.ErrorIs(t, err, engine.ErrNotFound)

	_, err = svc.Apply(ctx, wire.Record{UserAddress: user, BadgeID: catalog.BadgeFirstEmote, Update: models.UniqueEventUpdate{CompletedAt: 3}})
	require.NoError(t, err)
	_, err = svc.Apply(ctx, snapshotRecord(catalog.BadgeTraveler, 10000, 4))
	require.NoError(t, err)
	_, err = svc.Apply(ctx, wire.Record{UserAddress: user, BadgeID: catalog.BadgeProfilePro, Update: models.ProfileProgressUpdate{CompletedAt: 2, Description: "avatar"}})
	require.NoError(t, err)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// catalog order, not store order
	assert.Equal(t, catalog.BadgeProfilePro, list[0].Badge.ID)
	assert.Equal(t, catalog.BadgeFirstEmote, list[1].Badge.ID)
	assert.Equal(t, catalog.BadgeTraveler, list[2].Badge.ID)
	assert.Nil(t, list[2].NextTier, "final tier reached")
	assert.True(t, list[2].Progress.IsCompleted())
}

func TestApply_ConcurrentDeltasAreNotLost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	const writers = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Apply(ctx, wire.Record{
				EventID:     fmt.Sprintf("step-%d", i),
				UserAddress: user,
				BadgeID:     catalog.BadgeEmotionista,
				Update:      models.Increment(1, int64(i)),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.Get(ctx, user, catalog.BadgeEmotionista)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), got.Progress.Progress.Count)
	require.Len(t, got.Progress.AchievedTiers, 1)
	assert.Equal(t, "emotionista-starter", got.Progress.AchievedTiers[0].TierID)
}

// Two merges computed from the same stored snapshot and written without the
// store's per-key serialization: the second write silently drops the first.
func TestUnserializedMergesLoseUpdates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	key := models.NewProgressKey(user, catalog.BadgeEmotionista)
	def, err := svc.Catalog.Lookup(catalog.BadgeEmotionista)
	require.NoError(t, err)

	base, err := st.Fetch(ctx, key)
	require.NoError(t, err)
	first, err := svc.Engine.Merge(def, key, base, models.Increment(1, 1))
	require.NoError(t, err)
	second, err := svc.Engine.Merge(def, key, base, models.Increment(1, 2))
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, first.Progress))
	require.NoError(t, st.Upsert(ctx, second.Progress))

	got, err := st.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Progress.Count, "one increment was lost")
}
