package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"badge-progress-system/logging"
	"badge-progress-system/metrics"
	"badge-progress-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errLostRace restarts an Update whose insert hit a row created concurrently.
var errLostRace = errors.New("lost insert race")

// GormStore is the relational Store. Update locks the row with
// SELECT ... FOR UPDATE; when the row does not exist yet the insert is
// ON CONFLICT DO NOTHING and a lost race restarts the whole cycle.
type GormStore struct {
	DB       *gorm.DB
	retries  int
	runLease time.Duration
	now      func() int64
}

// GormOption configures a GormStore.
type GormOption func(*GormStore)

// WithRetries bounds the restarts of one Update.
func WithRetries(n int) GormOption {
	return func(s *GormStore) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithRunLease sets how long a running backfill run blocks restarts of its
// object. Zero disables the lease: a running run is never restarted.
func WithRunLease(d time.Duration) GormOption {
	return func(s *GormStore) {
		if d >= 0 {
			s.runLease = d
		}
	}
}

func NewGormStore(db *gorm.DB, opts ...GormOption) *GormStore {
	s := &GormStore{
		DB:       db,
		retries:  5,
		runLease: DefaultRunLease,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates every table the store uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserBadgeProgressRow{},
		&models.ProcessedEvent{},
		&models.SyncCursor{},
		&models.BackfillRun{},
	)
}

func whereKey(tx *gorm.DB, key models.ProgressKey) *gorm.DB {
	return tx.Where("user_address = ? AND badge_id = ?", key.UserAddress, key.BadgeID)
}

func (s *GormStore) Fetch(ctx context.Context, key models.ProgressKey) (*models.UserBadgeProgress, error) {
	var row models.UserBadgeProgressRow
	err := whereKey(s.DB.WithContext(ctx), key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress %s: %w", key, err)
	}
	rec := row.Record()
	return &rec, nil
}

func (s *GormStore) Upsert(ctx context.Context, rec models.UserBadgeProgress) error {
	row := models.NewProgressRow(rec)
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_address"}, {Name: "badge_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"progress", "achieved_tiers", "completed_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert progress %s/%s: %w", row.UserAddress, row.BadgeID, err)
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, key models.ProgressKey, opts UpdateOptions, fn MergeFunc) error {
	for attempt := 1; attempt <= s.retries; attempt++ {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.updateTx(tx, key, opts, fn)
		})
		if !errors.Is(err, errLostRace) {
			return err
		}
		metrics.StoreConflictRetries.Inc()
		logging.Debug().Str("key", key.String()).Int("attempt", attempt).Msg("progress insert raced, retrying")
	}
	return fmt.Errorf("progress %s: %w after %d attempts", key, ErrConflict, s.retries)
}

func (s *GormStore) updateTx(tx *gorm.DB, key models.ProgressKey, opts UpdateOptions, fn MergeFunc) error {
	if opts.EventID != "" {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ProcessedEvent{
			EventID:     opts.EventID,
			UserAddress: key.UserAddress,
			BadgeID:     key.BadgeID,
			ProcessedAt: s.now(),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to record event %s: %w", opts.EventID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateEvent
		}
	}

	var row models.UserBadgeProgressRow
	err := whereKey(tx.Clauses(clause.Locking{Strength: "UPDATE"}), key).Take(&row).Error
	var existing *models.UserBadgeProgress
	switch {
	case err == nil:
		rec := row.Record()
		existing = &rec
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("failed to lock progress %s: %w", key, err)
	}

	next, err := fn(existing)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	rec := next.Clone()
	rec.UserAddress, rec.BadgeID = key.UserAddress, key.BadgeID
	newRow := models.NewProgressRow(rec)

	if existing == nil {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&newRow)
		if res.Error != nil {
			return fmt.Errorf("failed to insert progress %s: %w", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		return nil
	}

	err = whereKey(tx.Model(&models.UserBadgeProgressRow{}), key).Updates(map[string]any{
		"progress":       newRow.Progress,
		"achieved_tiers": newRow.AchievedTiers,
		"completed_at":   newRow.CompletedAt,
		"updated_at":     newRow.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update progress %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) ListByUser(ctx context.Context, userAddress string) ([]models.UserBadgeProgress, error) {
	var rows []models.UserBadgeProgressRow
	err := s.DB.WithContext(ctx).
		Where("user_address = ?", models.NormalizeAddress(userAddress)).
		Order("badge_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list progress for %s: %w", userAddress, err)
	}
	out := make([]models.UserBadgeProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record())
	}
	return out, nil
}

func (s *GormStore) LoadCursor(ctx context.Context, name string) (string, error) {
	var c models.SyncCursor
	err := s.DB.WithContext(ctx).Where("name = ?", name).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor %s: %w", name, err)
	}
	return c.Value, nil
}

func (s *GormStore) SaveCursor(ctx context.Context, name, value string) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SyncCursor{Name: name, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", name, err)
	}
	return nil
}

func (s *GormStore) BeginRun(ctx context.Context, objectKey, etag string) (*models.BackfillRun, bool, error) {
	var run models.BackfillRun
	started := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("object_key = ? AND etag = ?", objectKey, etag).
			Take(&run).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			run = models.BackfillRun{
				ID:        uuid.NewString(),
				ObjectKey: objectKey,
				ETag:      etag,
				Status:    models.RunRunning,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&run)
			if res.Error != nil {
				return res.Error
			}
			started = res.RowsAffected == 1
			return nil
		case err != nil:
			return err
		case restartable(&run, s.runLease, time.Now()):
			run.Status = models.RunRunning
			run.Applied, run.Skipped, run.Failed, run.Error = 0, 0, 0, ""
			run.UpdatedAt = time.Now()
			started = true
			return tx.Model(&models.BackfillRun{}).Where("id = ?", run.ID).Updates(map[string]any{
				"status": run.Status, "applied": 0, "skipped": 0, "failed": 0, "error": "",
				"updated_at": run.UpdatedAt,
			}).Error
		default:
			return nil
		}
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin backfill run for %s: %w", objectKey, err)
	}
	return &run, started, nil
}

func (s *GormStore) FinishRun(ctx context.Context, run *models.BackfillRun) error {
	err := s.DB.WithContext(ctx).Model(&models.BackfillRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":  run.Status,
			"applied": run.Applied,
			"skipped": run.Skipped,
			"failed":  run.Failed,
			"error":   run.Error,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to finish backfill run %s: %w", run.ID, err)
	}
	return nil
}

var _ Store = (*GormStore)(nil)
