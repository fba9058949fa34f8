// Package store persists user badge progress and serializes the
// read-merge-write cycle per (user, badge) key.
package store

import (
	"context"
	"errors"
	"time"

	"badge-progress-system/models"
)

var (
	// ErrDuplicateEvent is returned by Update when opts.EventID was already applied.
	ErrDuplicateEvent = errors.New("event already processed")
	// ErrConflict is returned when an Update keeps losing the insert race.
	ErrConflict = errors.New("progress update conflict")
)

// UpdateOptions tune one Update call.
type UpdateOptions struct {
	// EventID, when set, is recorded with the write; a repeated id is rejected
	// with ErrDuplicateEvent before fn runs.
	EventID string
}

// MergeFunc computes the record to store from the current one (nil when no
// record exists). Returning nil skips the write; returning an error aborts
// the cycle and leaves the stored record untouched.
type MergeFunc func(existing *models.UserBadgeProgress) (*models.UserBadgeProgress, error)

// ProgressStore is the persistence port of the progress engine.
type ProgressStore interface {
	// Fetch returns the record for key, or nil when there is none.
	Fetch(ctx context.Context, key models.ProgressKey) (*models.UserBadgeProgress, error)
	// Upsert writes rec unconditionally.
	Upsert(ctx context.Context, rec models.UserBadgeProgress) error
	// Update runs fn against the current record with exclusive access to key
	// and stores its result.
	Update(ctx context.Context, key models.ProgressKey, opts UpdateOptions, fn MergeFunc) error
	// ListByUser returns every record of one user ordered by badge id.
	ListByUser(ctx context.Context, userAddress string) ([]models.UserBadgeProgress, error)
}

// CursorStore persists poller positions.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (string, error)
	SaveCursor(ctx context.Context, name, value string) error
}

// RunStore tracks backfill object imports.
type RunStore interface {
	// BeginRun registers an import of (objectKey, etag). started is false when
	// that object version already has a run that succeeded, or one still running
	// within its lease.
	BeginRun(ctx context.Context, objectKey, etag string) (run *models.BackfillRun, started bool, err error)
	FinishRun(ctx context.Context, run *models.BackfillRun) error
}

// Store is everything the service needs from persistence.
type Store interface {
	ProgressStore
	CursorStore
	RunStore
}

// DefaultRunLease is how long a running backfill run holds its object before
// another scan may restart it.
const DefaultRunLease = time.Hour

// restartable reports whether an existing run may be started again at now.
func restartable(run *models.BackfillRun, lease time.Duration, now time.Time) bool {
	switch run.Status {
	case models.RunFailed:
		return true
	case models.RunRunning:
		return lease > 0 && run.UpdatedAt.Before(now.Add(-lease))
	default:
		return false
	}
}
