package models

import (
	"fmt"
	"strings"
)

// BadgeKind selects the merge strategy used for a badge.
type BadgeKind uint8

const (
	KindUnknown BadgeKind = iota
	KindCounter
	KindUniqueEvent
	KindEquipmentSet
	KindLeveledTier
)

var badgeKindNames = map[BadgeKind]string{
	KindCounter:      "counter",
	KindUniqueEvent:  "unique_event",
	KindEquipmentSet: "equipment_set",
	KindLeveledTier:  "leveled_tier",
}

func (k BadgeKind) String() string {
	if name, ok := badgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseBadgeKind accepts the lower snake case names used in catalogs and wire payloads.
func ParseBadgeKind(s string) (BadgeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for kind, name := range badgeKindNames {
		if name == s {
			return kind, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown badge kind %q", s)
}

func (k BadgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *BadgeKind) UnmarshalText(text []byte) error {
	parsed, err := ParseBadgeKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CountingMode is the contract a leveled badge's callers use for the cumulative metric.
type CountingMode string

const (
	CountingSnapshot CountingMode = "snapshot" // update carries the absolute cumulative count
	CountingDelta    CountingMode = "delta"    // update carries an increment
)

// Tier is one threshold level of a leveled badge (Starter, Bronze, Silver, ...).
type Tier struct {
	TierID      string `json:"tier_id" yaml:"tier_id"`
	Ordinal     int    `json:"ordinal" yaml:"ordinal"`
	Name        string `json:"name" yaml:"name"`
	Threshold   int64  `json:"threshold" yaml:"threshold"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// BadgeCriteria applies to non-tiered badges.
type BadgeCriteria struct {
	Steps int64 `json:"steps" yaml:"steps"`
}

// BadgeDefinition: static config owned by the catalog, never mutated at runtime
type BadgeDefinition struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Category    string        `json:"category,omitempty" yaml:"category"`
	Kind        BadgeKind     `json:"kind" yaml:"kind"`
	Criteria    BadgeCriteria `json:"criteria" yaml:"criteria"`
	Tiers       []Tier        `json:"tiers,omitempty" yaml:"tiers"`
	Counting    CountingMode  `json:"counting,omitempty" yaml:"counting"`
}

// IsTiered reports whether the badge is measured against an ordered tier list.
func (d *BadgeDefinition) IsTiered() bool {
	return len(d.Tiers) > 0
}

// FinalTier returns the highest-ordinal tier, or nil for non-tiered badges.
func (d *BadgeDefinition) FinalTier() *Tier {
	if len(d.Tiers) == 0 {
		return nil
	}
	return &d.Tiers[len(d.Tiers)-1]
}

// TierIndex returns the position of tierID in d.Tiers, or -1.
func (d *BadgeDefinition) TierIndex(tierID string) int {
	for i := range d.Tiers {
		if d.Tiers[i].TierID == tierID {
			return i
		}
	}
	return -1
}

// Validate checks the structural rules every definition must satisfy.
// Tiers must already be sorted by ordinal; the first ordinal is 0.
func (d *BadgeDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("badge definition has an empty id")
	}
	if _, ok := badgeKindNames[d.Kind]; !ok {
		return fmt.Errorf("badge %s: unknown kind %d", d.ID, d.Kind)
	}

	if d.Kind != KindLeveledTier {
		if len(d.Tiers) > 0 {
			return fmt.Errorf("badge %s: tiers are only allowed on leveled badges", d.ID)
		}
		return nil
	}

	if len(d.Tiers) == 0 {
		return fmt.Errorf("badge %s: leveled badge without tiers", d.ID)
	}
	switch d.Counting {
	case CountingSnapshot, CountingDelta:
	default:
		return fmt.Errorf("badge %s: unknown counting mode %q", d.ID, d.Counting)
	}

	seen := make(map[string]struct{}, len(d.Tiers))
	for i, tier := range d.Tiers {
		if tier.TierID == "" {
			return fmt.Errorf("badge %s: tier %d has an empty id", d.ID, i)
		}
		if _, dup := seen[tier.TierID]; dup {
			return fmt.Errorf("badge %s: duplicate tier id %s", d.ID, tier.TierID)
		}
		seen[tier.TierID] = struct{}{}

		if i == 0 && tier.Ordinal != 0 {
			return fmt.Errorf("badge %s: first tier %s has ordinal %d, want 0", d.ID, tier.TierID, tier.Ordinal)
		}
		if i > 0 && tier.Ordinal <= d.Tiers[i-1].Ordinal {
			return fmt.Errorf("badge %s: tier %s ordinal %d is not above %d",
				d.ID, tier.TierID, tier.Ordinal, d.Tiers[i-1].Ordinal)
		}
		if tier.Threshold < 0 {
			return fmt.Errorf("badge %s: tier %s has a negative threshold", d.ID, tier.TierID)
		}
		if i > 0 && tier.Threshold <= d.Tiers[i-1].Threshold {
			return fmt.Errorf("badge %s: tier %s threshold %d is not above %d",
				d.ID, tier.TierID, tier.Threshold, d.Tiers[i-1].Threshold)
		}
	}
	return nil
}
