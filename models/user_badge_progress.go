package models

import (
	"slices"
	"strings"
)

// ProgressKey identifies one progress record. UserAddress is always lower-case.
type ProgressKey struct {
	UserAddress string `json:"user_address"`
	BadgeID     string `json:"badge_id"`
}

// NewProgressKey normalizes the address the same way the persistence layer does.
func NewProgressKey(userAddress, badgeID string) ProgressKey {
	return ProgressKey{
		UserAddress: NormalizeAddress(userAddress),
		BadgeID:     strings.TrimSpace(badgeID),
	}
}

func (k ProgressKey) String() string {
	return k.UserAddress + "/" + k.BadgeID
}

// NormalizeAddress lower-cases and trims a wallet address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Progress is the kind-specific payload; unused fields stay at their zero value.
type Progress struct {
	Steps         int64    `json:"steps"`
	Description   string   `json:"description,omitempty"`    // profile badges
	DescriptionAt int64    `json:"description_at,omitempty"` // instant of the report Description came from
	Items         []string `json:"items,omitempty"`          // equipment sets
	Count         int64    `json:"count,omitempty"`          // leveled badges
}

// AchievedTier records when a tier of a leveled badge was first reached.
type AchievedTier struct {
	TierID      string `json:"tier_id"`
	CompletedAt int64  `json:"completed_at"`
}

// UserBadgeProgress tracks one user's advancement toward one badge.
// All instants are epoch milliseconds.
type UserBadgeProgress struct {
	UserAddress   string         `json:"user_address"`
	BadgeID       string         `json:"badge_id"`
	Progress      Progress       `json:"progress"`
	AchievedTiers []AchievedTier `json:"achieved_tiers"`
	CompletedAt   *int64         `json:"completed_at"`
	UpdatedAt     int64          `json:"updated_at"`
}

// Key returns the record's identity.
func (p *UserBadgeProgress) Key() ProgressKey {
	return ProgressKey{UserAddress: p.UserAddress, BadgeID: p.BadgeID}
}

// Clone returns a deep copy so callers never share slices or pointers with p.
func (p UserBadgeProgress) Clone() UserBadgeProgress {
	out := p
	out.Progress.Items = slices.Clone(p.Progress.Items)
	out.AchievedTiers = slices.Clone(p.AchievedTiers)
	if p.CompletedAt != nil {
		v := *p.CompletedAt
		out.CompletedAt = &v
	}
	return out
}

// IsCompleted reports whether the badge (or its final tier) has been achieved.
func (p *UserBadgeProgress) IsCompleted() bool {
	return p.CompletedAt != nil
}

// HasTier reports whether tierID is in AchievedTiers.
func (p *UserBadgeProgress) HasTier(tierID string) bool {
	return slices.ContainsFunc(p.AchievedTiers, func(t AchievedTier) bool { return t.TierID == tierID })
}

// Int64Ptr is a small helper for optional instants and counts.
func Int64Ptr(v int64) *int64 {
	return &v
}
