package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"badge-progress-system/catalog"
	"badge-progress-system/engine"
	"badge-progress-system/logging"
	"badge-progress-system/metrics"
	"badge-progress-system/models"
	"badge-progress-system/store"
	"badge-progress-system/wire"
)

// ProgressService applies progress signals: catalog lookup, then a
// serialized read-merge-write of the (user, badge) record.
type ProgressService struct {
	Catalog catalog.Catalog
	Store   store.ProgressStore
	Engine  *engine.Engine
}

func NewProgressService(cat catalog.Catalog, st store.ProgressStore, eng *engine.Engine) *ProgressService {
	if eng == nil {
		eng = engine.New()
	}
	return &ProgressService{Catalog: cat, Store: st, Engine: eng}
}

// ApplyResult reports what one signal did.
type ApplyResult struct {
	Progress  models.UserBadgeProgress `json:"progress"`
	Changed   bool                     `json:"changed"`
	NewTiers  []models.AchievedTier    `json:"new_tiers,omitempty"`
	Completed bool                     `json:"completed"`
}

// Apply merges rec into the stored progress. Engine errors come back
// unwrapped so callers can classify them; a redelivered event id returns
// store.ErrDuplicateEvent.
func (s *ProgressService) Apply(ctx context.Context, rec wire.Record) (ApplyResult, error) {
	started := time.Now()
	def, err := s.Catalog.Lookup(rec.BadgeID)
	if err != nil {
		metrics.ObserveMerge(models.KindUnknown.String(), metrics.ResultRejected, started)
		return ApplyResult{}, err
	}
	kind := def.Kind.String()
	key := rec.Key()

	var out engine.Outcome
	err = s.Store.Update(ctx, key, store.UpdateOptions{EventID: rec.EventID}, func(existing *models.UserBadgeProgress) (*models.UserBadgeProgress, error) {
		o, err := s.Engine.Merge(def, key, existing, rec.Update)
		if err != nil {
			return nil, err
		}
		out = o
		if !o.Changed {
			return nil, nil
		}
		return &o.Progress, nil
	})

	switch {
	case errors.Is(err, store.ErrDuplicateEvent):
		metrics.ObserveMerge(kind, metrics.ResultDuplicate, started)
		return ApplyResult{}, err
	case err != nil && IsRecordError(err):
		metrics.ObserveMerge(kind, metrics.ResultRejected, started)
		return ApplyResult{}, err
	case err != nil:
		metrics.ObserveMerge(kind, metrics.ResultFailed, started)
		return ApplyResult{}, err
	}

	if !out.Changed {
		metrics.ObserveMerge(kind, metrics.ResultUnchanged, started)
		return ApplyResult{Progress: out.Progress}, nil
	}

	metrics.ObserveMerge(kind, metrics.ResultChanged, started)
	for range out.NewTiers {
		metrics.TiersAchieved.WithLabelValues(def.ID).Inc()
	}
	if out.Completed {
		metrics.BadgesCompleted.WithLabelValues(def.ID).Inc()
	}
	if len(out.NewTiers) > 0 || out.Completed {
		logging.Ctx(ctx).Info().
			Str("user_address", key.UserAddress).
			Str("badge_id", key.BadgeID).
			Int("new_tiers", len(out.NewTiers)).
			Bool("completed", out.Completed).
			Msg("🎖️ badge progress advanced")
	}

	return ApplyResult{
		Progress:  out.Progress,
		Changed:   true,
		NewTiers:  out.NewTiers,
		Completed: out.Completed,
	}, nil
}

// IsRecordError reports whether err concerns a single input record (log it
// and move on) rather than storage or the catalog as a whole.
func IsRecordError(err error) bool {
	return engine.IsSkippable(err) || errors.Is(err, engine.ErrNotFound)
}

// BadgeProgress pairs a badge definition with one user's progress on it.
type BadgeProgress struct {
	Badge    models.BadgeDefinition    `json:"badge"`
	Progress *models.UserBadgeProgress `json:"progress"`
	NextTier *models.Tier              `json:"next_tier,omitempty"`
}

func newBadgeProgress(def models.BadgeDefinition, rec *models.UserBadgeProgress) BadgeProgress {
	bp := BadgeProgress{Badge: def, Progress: rec}
	if def.IsTiered() {
		var count int64
		if rec != nil {
			count = rec.Progress.Count
		}
		bp.NextTier = engine.NextTier(&def, count)
	}
	return bp
}

// Get returns one user's progress on one badge; Progress is nil when the
// user has none yet.
func (s *ProgressService) Get(ctx context.Context, userAddress, badgeID string) (BadgeProgress, error) {
	def, err := s.Catalog.Lookup(badgeID)
	if err != nil {
		return BadgeProgress{}, err
	}
	rec, err := s.Store.Fetch(ctx, models.NewProgressKey(userAddress, badgeID))
	if err != nil {
		return BadgeProgress{}, fmt.Errorf("failed to fetch progress: %w", err)
	}
	return newBadgeProgress(*def, rec), nil
}

// List returns the user's progress on every badge they have touched, in
// catalog order. Records for badges no longer in the catalog are dropped.
func (s *ProgressService) List(ctx context.Context, userAddress string) ([]BadgeProgress, error) {
	recs, err := s.Store.ListByUser(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	byBadge := make(map[string]*models.UserBadgeProgress, len(recs))
	for i := range recs {
		byBadge[recs[i].BadgeID] = &recs[i]
	}

	out := make([]BadgeProgress, 0, len(recs))
	for _, def := range s.Catalog.All() {
		if rec, ok := byBadge[def.ID]; ok {
			out = append(out, newBadgeProgress(def, rec))
		}
	}
	return out, nil
}
