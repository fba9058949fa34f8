package engine

import (
	"badge-progress-system/models"
)

// TierCrossing is the Tier Crossing Evaluator's result for one merge.
type TierCrossing struct {
	// Achieved is the complete list after the merge, in ordinal order.
	Achieved []models.AchievedTier
	// Newly holds the tiers first reached by this merge.
	Newly []models.AchievedTier
	// Restamped is true when an already achieved tier moved to an earlier instant.
	Restamped bool
}

// EvaluateTiers scans def.Tiers in ordinal order against count. A tier is newly
// achieved when count reaches its threshold and it is not in achieved yet; it is
// stamped with perTier[tierID] when present, otherwise with stamp. Tiers already
// achieved keep their instant unless perTier reports an earlier one.
//
// achieved must only reference tiers of def and hold each at most once.
func EvaluateTiers(def *models.BadgeDefinition, achieved []models.AchievedTier, count, stamp int64, perTier map[string]int64) (TierCrossing, error) {
	known := make(map[string]int64, len(achieved))
	for _, at := range achieved {
		if def.TierIndex(at.TierID) < 0 {
			return TierCrossing{}, inconsistentf(def.ID, "stored tier %q is not defined", at.TierID)
		}
		if _, dup := known[at.TierID]; dup {
			return TierCrossing{}, inconsistentf(def.ID, "stored tier %q appears twice", at.TierID)
		}
		known[at.TierID] = at.CompletedAt
	}

	var out TierCrossing
	out.Achieved = make([]models.AchievedTier, 0, len(def.Tiers))
	for _, tier := range def.Tiers {
		explicit, hasExplicit := perTier[tier.TierID]

		if completedAt, ok := known[tier.TierID]; ok {
			if hasExplicit && explicit < completedAt {
				completedAt = explicit
				out.Restamped = true
			}
			out.Achieved = append(out.Achieved, models.AchievedTier{TierID: tier.TierID, CompletedAt: completedAt})
			continue
		}

		if count < tier.Threshold {
			continue
		}
		at := models.AchievedTier{TierID: tier.TierID, CompletedAt: stamp}
		if hasExplicit {
			at.CompletedAt = explicit
		}
		out.Achieved = append(out.Achieved, at)
		out.Newly = append(out.Newly, at)
	}
	return out, nil
}

// TiersReached lists the tiers whose threshold count meets, in ordinal order.
func TiersReached(def *models.BadgeDefinition, count int64) []models.Tier {
	var reached []models.Tier
	for _, tier := range def.Tiers {
		if count >= tier.Threshold {
			reached = append(reached, tier)
		}
	}
	return reached
}

// NextTier returns the lowest tier count has not reached, or nil when all are reached.
func NextTier(def *models.BadgeDefinition, count int64) *models.Tier {
	for i := range def.Tiers {
		if count < def.Tiers[i].Threshold {
			return &def.Tiers[i]
		}
	}
	return nil
}
