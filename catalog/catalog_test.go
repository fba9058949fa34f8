package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"badge-progress-system/engine"
	"badge-progress-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, len(Definitions), c.Len())

	traveler, err := c.Lookup(BadgeTraveler)
	require.NoError(t, err)
	require.Len(t, traveler.Tiers, 6)
	assert.Equal(t, "traveler-starter", traveler.Tiers[0].TierID)
	assert.Equal(t, "traveler-diamond", traveler.Tiers[5].TierID)
	assert.Equal(t, "Reach 1 scene", traveler.Tiers[0].Description)
	assert.Equal(t, "Reach 10,000 scenes", traveler.Tiers[5].Description)

	walk, err := c.Lookup(BadgeWalkabout)
	require.NoError(t, err)
	assert.Equal(t, models.CountingDelta, walk.Counting)
	assert.Equal(t, "walkabout-wanderer-starter", walk.Tiers[0].TierID)

	all := c.All()
	require.Len(t, all, c.Len())
	assert.Equal(t, BadgeProfilePro, all[0].ID)
}

func TestLookup(t *testing.T) {
	c := Default()

	_, err := c.Lookup("missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	def, err := c.Lookup(BadgeTraveler)
	require.NoError(t, err)
	def.Tiers[0].Threshold = 999

	again, err := c.Lookup(BadgeTraveler)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Tiers[0].Threshold, "lookups hand out copies")
}

func TestNew_Rejects(t *testing.T) {
	unique := models.BadgeDefinition{ID: "a", Kind: models.KindUniqueEvent}

	_, err := New([]models.BadgeDefinition{unique, unique})
	assert.ErrorContains(t, err, "duplicate badge id a")

	_, err = New([]models.BadgeDefinition{{ID: "b", Kind: models.KindLeveledTier}})
	assert.ErrorContains(t, err, "leveled badge without tiers")

	_, err = New([]models.BadgeDefinition{{
		ID:   "c",
		Kind: models.KindLeveledTier,
		Tiers: []models.Tier{
			{Name: "One", Threshold: 10},
			{Name: "Two", Threshold: 5},
		},
	}})
	assert.ErrorContains(t, err, "threshold 5 is not above 10")
}

func TestNew_Normalizes(t *testing.T) {
	c, err := New([]models.BadgeDefinition{
		{ID: "first-login", Kind: models.KindUniqueEvent},
		{ID: "steps", Kind: models.KindLeveledTier, Tiers: []models.Tier{
			{Name: "Small", Threshold: 1},
			{Name: "Big Walk", Threshold: 100},
		}},
	})
	require.NoError(t, err)

	login, err := c.Lookup("first-login")
	require.NoError(t, err)
	assert.Equal(t, int64(1), login.Criteria.Steps)

	steps, err := c.Lookup("steps")
	require.NoError(t, err)
	assert.Equal(t, models.CountingSnapshot, steps.Counting)
	assert.Equal(t, []int{0, 1}, []int{steps.Tiers[0].Ordinal, steps.Tiers[1].Ordinal})
	assert.Equal(t, "steps-big-walk", steps.Tiers[1].TierID)
}

const yamlCatalogDoc = `
badges:
  - id: explorer
    name: Explorer
    description: Visit places
    kind: leveled_tier
    counting: delta
    tiers:
      - name: Starter
        threshold: 1
      - name: Bronze
        threshold: 10
  - id: first-login
    name: First Login
    kind: unique_event
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(yamlCatalogDoc))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	explorer, err := c.Lookup("explorer")
	require.NoError(t, err)
	assert.Equal(t, models.KindLeveledTier, explorer.Kind)
	assert.Equal(t, models.CountingDelta, explorer.Counting)
	assert.Equal(t, "explorer-bronze", explorer.Tiers[1].TierID)

	_, err = LoadYAML(strings.NewReader("badges: []"))
	assert.ErrorContains(t, err, "empty")

	_, err = LoadYAML(strings.NewReader("badges:\n  - id: x\n    kind: unique_event\n    colour: red\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = LoadYAML(strings.NewReader("badges:\n  - id: x\n    kind: trophy\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, len(Definitions), c.Len())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlCatalogDoc), 0o600))
	c, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
