package models

// UpdateShape names the wire variant of a ProgressUpdate.
type UpdateShape string

const (
	ShapeUniqueEvent     UpdateShape = "unique_event"
	ShapeProfileProgress UpdateShape = "profile_progress"
	ShapeEquipmentSet    UpdateShape = "equipment_set"
	ShapeLeveledTier     UpdateShape = "leveled_tier"
)

// ProgressUpdate is an incoming progress signal. The set of variants is closed:
// only the types in this file implement it.
type ProgressUpdate interface {
	Shape() UpdateShape
	sealed()
}

// UniqueEventUpdate signals the first occurrence of a qualifying event.
type UniqueEventUpdate struct {
	CompletedAt int64 `json:"completed_at"`
}

// ProfileProgressUpdate signals a completed profile step with its description.
type ProfileProgressUpdate struct {
	CompletedAt int64  `json:"completed_at"`
	Description string `json:"description"`
}

// EquipmentSetUpdate carries the qualifying items seen together at CompletedAt.
type EquipmentSetUpdate struct {
	CompletedAt int64    `json:"completed_at"`
	Items       []string `json:"items"`
}

// LeveledTierUpdate advances a cumulative metric. Exactly one of CumulativeCount
// and Delta is set. TierCompletedAt optionally overrides CompletedAt per tier id.
type LeveledTierUpdate struct {
	CompletedAt     int64            `json:"completed_at"`
	CumulativeCount *int64           `json:"cumulative_count,omitempty"`
	Delta           *int64           `json:"delta,omitempty"`
	TierCompletedAt map[string]int64 `json:"tier_completed_at,omitempty"`
}

func (UniqueEventUpdate) Shape() UpdateShape     { return ShapeUniqueEvent }
func (ProfileProgressUpdate) Shape() UpdateShape { return ShapeProfileProgress }
func (EquipmentSetUpdate) Shape() UpdateShape    { return ShapeEquipmentSet }
func (LeveledTierUpdate) Shape() UpdateShape     { return ShapeLeveledTier }

func (UniqueEventUpdate) sealed()     {}
func (ProfileProgressUpdate) sealed() {}
func (EquipmentSetUpdate) sealed()    {}
func (LeveledTierUpdate) sealed()     {}

// Snapshot builds a leveled update carrying an absolute count.
func Snapshot(count, completedAt int64) LeveledTierUpdate {
	return LeveledTierUpdate{CompletedAt: completedAt, CumulativeCount: &count}
}

// Increment builds a leveled update carrying a delta.
func Increment(delta, completedAt int64) LeveledTierUpdate {
	return LeveledTierUpdate{CompletedAt: completedAt, Delta: &delta}
}
