// Package engine decides how a progress signal changes a user's badge record.
//
// Merge is the single entry point: it selects a strategy from the badge kind,
// advances counters, detects tier crossings and reconciles completion instants
// with earliest-wins. The package performs no I/O and keeps no state between
// calls; serializing read-merge-write per (user, badge) key is the caller's job.
package engine

import (
	"slices"
	"time"

	"badge-progress-system/models"
)

// Clock returns the current instant in epoch milliseconds.
type Clock func() int64

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used to stamp UpdatedAt.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.now = c }
}

// Engine is safe for concurrent use; it holds only its clock.
type Engine struct {
	now Clock
}

func New(opts ...Option) *Engine {
	e := &Engine{now: func() int64 { return time.Now().UnixMilli() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the result of a successful merge.
type Outcome struct {
	Progress models.UserBadgeProgress
	// Changed is false when the update carried nothing new; Progress then
	// equals the existing record, UpdatedAt included.
	Changed bool
	// NewTiers lists tiers first achieved by this merge, in ordinal order.
	NewTiers []models.AchievedTier
	// Completed is true when this merge set the overall CompletedAt.
	Completed bool
}

// Merge applies update to existing (nil when no record exists for key) and
// returns the new record. Neither def nor existing is modified. On error the
// caller must keep the existing record as it was.
func (e *Engine) Merge(def *models.BadgeDefinition, key models.ProgressKey, existing *models.UserBadgeProgress, update models.ProgressUpdate) (Outcome, error) {
	if def == nil {
		return Outcome{}, inconsistentf(key.BadgeID, "badge definition is missing")
	}
	if err := def.Validate(); err != nil {
		return Outcome{}, inconsistentf(def.ID, "invalid definition: %v", err)
	}
	if key.BadgeID != def.ID {
		return Outcome{}, inconsistentf(def.ID, "progress key targets badge %q", key.BadgeID)
	}
	if key.UserAddress == "" {
		return Outcome{}, Malformedf(def.ID, "user_address", "user address is empty")
	}
	if update == nil {
		return Outcome{}, Validationf(def.ID, "no update supplied")
	}

	var base models.UserBadgeProgress
	if existing != nil {
		if models.NormalizeAddress(existing.UserAddress) != key.UserAddress || existing.BadgeID != key.BadgeID {
			return Outcome{}, inconsistentf(def.ID, "existing record %s does not match key %s", existing.Key(), key)
		}
		base = existing.Clone()
		base.UserAddress = key.UserAddress
	} else {
		base = seed(key)
	}

	var (
		next     models.UserBadgeProgress
		newTiers []models.AchievedTier
		err      error
	)
	switch def.Kind {
	case models.KindCounter:
		next, err = mergeCounter(def, base, update)
	case models.KindUniqueEvent:
		next, err = mergeUniqueEvent(def, base, update)
	case models.KindEquipmentSet:
		next, err = mergeEquipmentSet(def, base, update)
	case models.KindLeveledTier:
		next, newTiers, err = mergeLeveledTier(def, base, update)
	default:
		err = inconsistentf(def.ID, "no strategy for kind %s", def.Kind)
	}
	if err != nil {
		return Outcome{}, err
	}

	if existing != nil && sameState(*existing, next) {
		return Outcome{Progress: existing.Clone()}, nil
	}

	next.UpdatedAt = e.now()
	return Outcome{
		Progress:  next,
		Changed:   true,
		NewTiers:  newTiers,
		Completed: next.CompletedAt != nil && (existing == nil || existing.CompletedAt == nil),
	}, nil
}

// seed is the zeroed record a first merge starts from.
func seed(key models.ProgressKey) models.UserBadgeProgress {
	return models.UserBadgeProgress{
		UserAddress: key.UserAddress,
		BadgeID:     key.BadgeID,
	}
}

// sameState compares everything but UpdatedAt. Nil and empty slices are equal.
func sameState(a, b models.UserBadgeProgress) bool {
	return a.UserAddress == b.UserAddress &&
		a.BadgeID == b.BadgeID &&
		a.Progress.Steps == b.Progress.Steps &&
		a.Progress.Description == b.Progress.Description &&
		a.Progress.Count == b.Progress.Count &&
		slices.Equal(a.Progress.Items, b.Progress.Items) &&
		slices.Equal(a.AchievedTiers, b.AchievedTiers) &&
		sameInstant(a.CompletedAt, b.CompletedAt)
}

// checkInstant rejects negative timestamps.
func checkInstant(badgeID, field string, v int64) error {
	if v < 0 {
		return Malformedf(badgeID, field, "timestamp %d is negative", v)
	}
	return nil
}
