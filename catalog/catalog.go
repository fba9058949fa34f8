// Package catalog holds the static badge definitions the engine merges against.
package catalog

import (
	"fmt"
	"io"
	"os"
	"slices"

	"badge-progress-system/engine"
	"badge-progress-system/models"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

// Catalog is a read-only lookup of badge definitions.
type Catalog interface {
	// Lookup returns the definition for id or an engine NotFound error.
	Lookup(id string) (*models.BadgeDefinition, error)
	// All returns every definition in catalog order.
	All() []models.BadgeDefinition
}

// StaticCatalog is an immutable in-memory Catalog.
type StaticCatalog struct {
	byID  map[string]*models.BadgeDefinition
	order []string
}

// New validates defs and builds a catalog. Missing tier ids are derived from
// the badge id and tier name; omitted ordinals are numbered in list order.
func New(defs []models.BadgeDefinition) (*StaticCatalog, error) {
	c := &StaticCatalog{byID: make(map[string]*models.BadgeDefinition, len(defs))}
	for _, d := range defs {
		def := normalize(d)
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("duplicate badge id %s", def.ID)
		}
		c.byID[def.ID] = &def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

// MustNew is New for package-level catalogs that are known to be valid.
func MustNew(defs []models.BadgeDefinition) *StaticCatalog {
	c, err := New(defs)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *StaticCatalog) Lookup(id string) (*models.BadgeDefinition, error) {
	def, ok := c.byID[id]
	if !ok {
		return nil, engine.NotFoundf(id)
	}
	cp := *def
	cp.Tiers = slices.Clone(def.Tiers)
	return &cp, nil
}

func (c *StaticCatalog) All() []models.BadgeDefinition {
	out := make([]models.BadgeDefinition, 0, len(c.order))
	for _, id := range c.order {
		def := *c.byID[id]
		def.Tiers = slices.Clone(def.Tiers)
		out = append(out, def)
	}
	return out
}

// Len returns the number of badges.
func (c *StaticCatalog) Len() int {
	return len(c.order)
}

func normalize(d models.BadgeDefinition) models.BadgeDefinition {
	d.Tiers = slices.Clone(d.Tiers)

	numbered := false
	for _, t := range d.Tiers {
		if t.Ordinal != 0 {
			numbered = true
			break
		}
	}
	for i := range d.Tiers {
		if !numbered {
			d.Tiers[i].Ordinal = i
		}
		if d.Tiers[i].TierID == "" {
			d.Tiers[i].TierID = TierID(d.ID, d.Tiers[i].Name)
		}
	}
	if d.Kind == models.KindLeveledTier && d.Counting == "" {
		d.Counting = models.CountingSnapshot
	}
	if d.Kind != models.KindLeveledTier && d.Criteria.Steps == 0 {
		d.Criteria.Steps = 1
	}
	return d
}

// TierID derives the stable id of a named tier, e.g. "traveler-gold".
func TierID(badgeID, tierName string) string {
	return slug.Make(badgeID + "-" + tierName)
}

type yamlCatalog struct {
	Badges []models.BadgeDefinition `yaml:"badges"`
}

// LoadYAML reads a catalog document of the form `badges: [...]`.
func LoadYAML(r io.Reader) (*StaticCatalog, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode badge catalog: %w", err)
	}
	if len(doc.Badges) == 0 {
		return nil, fmt.Errorf("badge catalog is empty")
	}
	return New(doc.Badges)
}

// LoadFile loads the YAML catalog at path, or the built-in catalog when path
// is empty.
func LoadFile(path string) (*StaticCatalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}
