package engine

import (
	"fmt"
	"slices"
	"strings"

	"badge-progress-system/models"
)

// mergeCounter handles single-criterion badges completed by one signal, such
// as filling in profile information. A profile update may also carry the
// description of what was completed.
func mergeCounter(def *models.BadgeDefinition, rec models.UserBadgeProgress, update models.ProgressUpdate) (models.UserBadgeProgress, error) {
	switch u := update.(type) {
	case models.ProfileProgressUpdate:
		if err := checkInstant(def.ID, "completed_at", u.CompletedAt); err != nil {
			return rec, err
		}
		desc := strings.TrimSpace(u.Description)
		if desc == "" {
			return rec, Malformedf(def.ID, "description", "description is empty")
		}
		if keepsDescription(rec, u.CompletedAt, desc) {
			rec.Progress.Description = desc
			rec.Progress.DescriptionAt = u.CompletedAt
		}
		complete(&rec, u.CompletedAt)
		return rec, nil

	case models.UniqueEventUpdate:
		if err := checkInstant(def.ID, "completed_at", u.CompletedAt); err != nil {
			return rec, err
		}
		complete(&rec, u.CompletedAt)
		return rec, nil

	default:
		return rec, Validationf(def.ID, "%s badge cannot take a %s update", def.Kind, update.Shape())
	}
}

// keepsDescription reports whether a profile report at instant with desc
// replaces the stored description. The earliest report wins; reports at the
// same instant keep the lexicographically smallest description.
func keepsDescription(rec models.UserBadgeProgress, instant int64, desc string) bool {
	stored := rec.Progress.Description
	if stored == "" {
		return true
	}
	at := rec.Progress.DescriptionAt
	if at == 0 && rec.CompletedAt != nil {
		// rows written before description instants were tracked
		at = *rec.CompletedAt
	}
	switch {
	case instant < at:
		return true
	case instant == at:
		return desc < stored
	default:
		return false
	}
}

// mergeUniqueEvent handles badges granted on the first qualifying event.
func mergeUniqueEvent(def *models.BadgeDefinition, rec models.UserBadgeProgress, update models.ProgressUpdate) (models.UserBadgeProgress, error) {
	u, ok := update.(models.UniqueEventUpdate)
	if !ok {
		return rec, Validationf(def.ID, "%s badge cannot take a %s update", def.Kind, update.Shape())
	}
	if err := checkInstant(def.ID, "completed_at", u.CompletedAt); err != nil {
		return rec, err
	}
	complete(&rec, u.CompletedAt)
	return rec, nil
}

// mergeEquipmentSet keeps the item snapshot attached to the earliest qualifying
// instant. Later snapshots are discarded even when they hold more items.
func mergeEquipmentSet(def *models.BadgeDefinition, rec models.UserBadgeProgress, update models.ProgressUpdate) (models.UserBadgeProgress, error) {
	u, ok := update.(models.EquipmentSetUpdate)
	if !ok {
		return rec, Validationf(def.ID, "%s badge cannot take a %s update", def.Kind, update.Shape())
	}
	if err := checkInstant(def.ID, "completed_at", u.CompletedAt); err != nil {
		return rec, err
	}
	items, err := normalizeItems(def.ID, u.Items)
	if err != nil {
		return rec, err
	}

	if isEarlier(rec.CompletedAt, u.CompletedAt) {
		rec.Progress.Items = items
		rec.CompletedAt = models.Int64Ptr(u.CompletedAt)
		rec.Progress.Steps = max(rec.Progress.Steps, 1)
	}
	return rec, nil
}

// mergeLeveledTier advances the cumulative metric and records crossed tiers.
func mergeLeveledTier(def *models.BadgeDefinition, rec models.UserBadgeProgress, update models.ProgressUpdate) (models.UserBadgeProgress, []models.AchievedTier, error) {
	u, ok := update.(models.LeveledTierUpdate)
	if !ok {
		return rec, nil, Validationf(def.ID, "%s badge cannot take a %s update", def.Kind, update.Shape())
	}
	if err := checkInstant(def.ID, "completed_at", u.CompletedAt); err != nil {
		return rec, nil, err
	}
	for tierID, at := range u.TierCompletedAt {
		if def.TierIndex(tierID) < 0 {
			return rec, nil, Malformedf(def.ID, "tier_completed_at", "unknown tier %q", tierID)
		}
		if err := checkInstant(def.ID, "tier_completed_at."+tierID, at); err != nil {
			return rec, nil, err
		}
	}

	stored := rec.Progress.Count
	var count int64
	switch {
	case u.CumulativeCount != nil && u.Delta != nil:
		return rec, nil, Malformedf(def.ID, "cumulative_count", "update carries both a cumulative count and a delta")

	case u.CumulativeCount != nil:
		if def.Counting != models.CountingSnapshot {
			return rec, nil, Validationf(def.ID, "badge counts with %s updates, got a cumulative count", def.Counting)
		}
		if *u.CumulativeCount < 0 {
			return rec, nil, Malformedf(def.ID, "cumulative_count", "count %d is negative", *u.CumulativeCount)
		}
		if *u.CumulativeCount < stored {
			return rec, nil, regressionf(def.ID, stored, *u.CumulativeCount)
		}
		if *u.CumulativeCount == stored {
			return rec, nil, nil
		}
		count = *u.CumulativeCount

	case u.Delta != nil:
		if def.Counting != models.CountingDelta {
			return rec, nil, Validationf(def.ID, "badge counts with %s updates, got a delta", def.Counting)
		}
		if *u.Delta < 0 {
			return rec, nil, Malformedf(def.ID, "delta", "delta %d is negative", *u.Delta)
		}
		if *u.Delta == 0 {
			return rec, nil, nil
		}
		count = stored + *u.Delta
		if count < stored {
			return rec, nil, Malformedf(def.ID, "delta", "delta %d overflows count %d", *u.Delta, stored)
		}

	default:
		return rec, nil, Malformedf(def.ID, "cumulative_count", "update carries neither a cumulative count nor a delta")
	}

	crossing, err := EvaluateTiers(def, rec.AchievedTiers, count, u.CompletedAt, u.TierCompletedAt)
	if err != nil {
		return rec, nil, err
	}

	rec.Progress.Count = count
	rec.AchievedTiers = nil
	if len(crossing.Achieved) > 0 {
		rec.AchievedTiers = crossing.Achieved
	}

	final := def.FinalTier()
	if n := len(rec.AchievedTiers); n > 0 && rec.AchievedTiers[n-1].TierID == final.TierID {
		rec.CompletedAt = earliest(rec.CompletedAt, rec.AchievedTiers[n-1].CompletedAt)
	}
	return rec, crossing.Newly, nil
}

// complete marks a single-criterion badge as done at completedAt, earliest-wins.
func complete(rec *models.UserBadgeProgress, completedAt int64) {
	rec.Progress.Steps = max(rec.Progress.Steps, 1)
	rec.CompletedAt = earliest(rec.CompletedAt, completedAt)
}

// normalizeItems validates item ids and returns them sorted and de-duplicated.
func normalizeItems(badgeID string, items []string) ([]string, error) {
	if len(items) == 0 {
		return nil, Malformedf(badgeID, "items", "item set is empty")
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, Malformedf(badgeID, fmt.Sprintf("items[%d]", i), "item id is empty")
		}
		out = append(out, item)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
