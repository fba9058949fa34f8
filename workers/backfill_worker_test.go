package workers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"badge-progress-system/catalog"
	"badge-progress-system/models"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/utils"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	gets    map[string]int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, etags: map[string]string{}, gets: map[string]int{}}
}

func (b *fakeBucket) put(key, etag, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = []byte(body)
	b.etags[key] = etag
}

func (b *fakeBucket) List(_ context.Context, prefix string) ([]utils.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []utils.ObjectInfo
	for key, body := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, utils.ObjectInfo{Key: key, ETag: b.etags[key], Size: int64(len(body))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *fakeBucket) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets[key]++
	body, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return body, nil
}

func (b *fakeBucket) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.etags[key] = "report"
	return nil
}

func (b *fakeBucket) getCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets[key]
}

func (b *fakeBucket) report(t *testing.T, key string) services.ImportReport {
	t.Helper()
	b.mu.Lock()
	body, ok := b.objects[key]
	b.mu.Unlock()
	require.True(t, ok, "report %s missing", key)
	var rep services.ImportReport
	require.NoError(t, json.Unmarshal(body, &rep))
	return rep
}

func travelerLine(count, at int64) string {
	return fmt.Sprintf(`{"user_address":%q,"badge_id":%q,"update":{"kind":"leveled_tier","completed_at":%d,"cumulative_count":%d}}`,
		testUser, catalog.BadgeTraveler, at, count)
}

func TestBackfillWorker_ImportsEachObjectVersionOnce(t *testing.T) {
	bucket := newFakeBucket()
	bucket.put("backfill/2024-01.jsonl", "v1", strings.Join([]string{
		travelerLine(10, 1),
		`{"user_address":"0x1","badge_id":"traveler"}`,
		travelerLine(60, 2),
	}, "\n"))
	bucket.put("backfill/readme.txt", "x", "not a dump")

	st := store.NewMemoryStore()
	w := NewBackfillWorker(bucket, st, services.NewBackfillService(newProgress(st), 2), "backfill/")
	ctx := context.Background()

	require.NoError(t, w.Scan(ctx))

	rec, err := st.Fetch(ctx, models.NewProgressKey(testUser, catalog.BadgeTraveler))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(60), rec.Progress.Count)
	assert.Zero(t, bucket.getCount("backfill/readme.txt"))

	rep := bucket.report(t, ReportPrefix+"2024-01.jsonl.report.json")
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.Applied)
	assert.Equal(t, 1, rep.Skipped)

	require.NoError(t, w.Scan(ctx))
	assert.Equal(t, 1, bucket.getCount("backfill/2024-01.jsonl"), "unchanged objects are not re-imported")

	bucket.put("backfill/2024-01.jsonl", "v2", travelerLine(300, 3))
	require.NoError(t, w.Scan(ctx))
	assert.Equal(t, 2, bucket.getCount("backfill/2024-01.jsonl"))

	rec, err = st.Fetch(ctx, models.NewProgressKey(testUser, catalog.BadgeTraveler))
	require.NoError(t, err)
	assert.Equal(t, int64(300), rec.Progress.Count)
	assert.Len(t, rec.AchievedTiers, 3)
}

func TestBackfillWorker_FailedRunIsRetried(t *testing.T) {
	bucket := newFakeBucket()
	bucket.put("backfill/a.json", "v1", "["+travelerLine(5, 1)+"]")

	st := store.NewMemoryStore()
	broken := services.NewBackfillService(newProgress(failingStore{st}), 1)
	w := NewBackfillWorker(bucket, st, broken, "backfill/")
	ctx := context.Background()

	require.NoError(t, w.Scan(ctx), "a failed object is recorded, not returned")
	_, started, err := st.BeginRun(ctx, "backfill/a.json", "v1")
	require.NoError(t, err)
	assert.True(t, started, "failed runs can be started again")
	require.NoError(t, st.FinishRun(ctx, &models.BackfillRun{ObjectKey: "backfill/a.json", ETag: "v1", Status: models.RunFailed}))

	healthy := NewBackfillWorker(bucket, st, services.NewBackfillService(newProgress(st), 1), "backfill/")
	require.NoError(t, healthy.Scan(ctx))

	rec, err := st.Fetch(ctx, models.NewProgressKey(testUser, catalog.BadgeTraveler))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(5), rec.Progress.Count)
	assert.Equal(t, 2, bucket.getCount("backfill/a.json"))
}

type brokenLister struct{ *fakeBucket }

func (brokenLister) List(context.Context, string) ([]utils.ObjectInfo, error) {
	return nil, errors.New("bucket unavailable")
}

func TestBackfillWorker_ListError(t *testing.T) {
	st := store.NewMemoryStore()
	w := NewBackfillWorker(brokenLister{newFakeBucket()}, st, services.NewBackfillService(newProgress(st), 1), "backfill/")
	assert.EqualError(t, w.Scan(context.Background()), "bucket unavailable")
}
