package models

import (
	"time"

	"gorm.io/datatypes"
)

// UserBadgeProgressRow is the persisted form of UserBadgeProgress.
// Instants are epoch milliseconds; completed_at is NULL until the badge is completed.
type UserBadgeProgressRow struct {
	UserAddress   string                            `gorm:"primaryKey;size:64" json:"user_address"` // always lower-case
	BadgeID       string                            `gorm:"primaryKey;size:128;index" json:"badge_id"`
	Progress      datatypes.JSONType[Progress]      `gorm:"not null" json:"progress"`
	AchievedTiers datatypes.JSONSlice[AchievedTier] `json:"achieved_tiers"`
	CompletedAt   *int64                            `json:"completed_at"`
	UpdatedAt     int64                             `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (UserBadgeProgressRow) TableName() string {
	return "user_badge_progress"
}

// NewProgressRow converts a domain record for persistence.
func NewProgressRow(p UserBadgeProgress) UserBadgeProgressRow {
	p = p.Clone()
	return UserBadgeProgressRow{
		UserAddress:   NormalizeAddress(p.UserAddress),
		BadgeID:       p.BadgeID,
		Progress:      datatypes.NewJSONType(p.Progress),
		AchievedTiers: datatypes.JSONSlice[AchievedTier](p.AchievedTiers),
		CompletedAt:   p.CompletedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// Record converts a row back to the domain type.
func (r UserBadgeProgressRow) Record() UserBadgeProgress {
	out := UserBadgeProgress{
		UserAddress:   r.UserAddress,
		BadgeID:       r.BadgeID,
		Progress:      r.Progress.Data(),
		AchievedTiers: []AchievedTier(r.AchievedTiers),
		CompletedAt:   r.CompletedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	return out.Clone()
}

// ProcessedEvent marks an upstream event id as applied so redeliveries are dropped.
type ProcessedEvent struct {
	EventID     string `gorm:"primaryKey;size:128"`
	UserAddress string `gorm:"size:64;not null"`
	BadgeID     string `gorm:"size:128;not null"`
	ProcessedAt int64  `gorm:"not null"`
}

// SyncCursor stores how far a poller has read an upstream feed.
type SyncCursor struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string `gorm:"not null"`
	Timestamps
}

// BackfillRun statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// BackfillRun records one import of one backfill object.
type BackfillRun struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ObjectKey string `gorm:"uniqueIndex:idx_backfill_object;size:512;not null" json:"object_key"`
	ETag      string `gorm:"column:etag;uniqueIndex:idx_backfill_object;size:128;not null" json:"etag"`
	Status    string `gorm:"size:16;not null" json:"status"`
	Applied   int    `json:"applied"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
