package workers

import (
	"context"
	"errors"

	"badge-progress-system/catalog"
	"badge-progress-system/engine"
	"badge-progress-system/models"
	"badge-progress-system/services"
	"badge-progress-system/store"
)

const testUser = "0x00000000000000000000000000000000000000aa"

// failingStore accepts reads but every write fails like a lost database.
type failingStore struct {
	*store.MemoryStore
}

var errStorageDown = errors.New("storage down")

func (failingStore) Update(context.Context, models.ProgressKey, store.UpdateOptions, store.MergeFunc) error {
	return errStorageDown
}

func newProgress(st store.ProgressStore) *services.ProgressService {
	eng := engine.New(engine.WithClock(func() int64 { return 42 }))
	return services.NewProgressService(catalog.Default(), st, eng)
}
