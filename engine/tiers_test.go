package engine

import (
	"testing"

	"badge-progress-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTiers(t *testing.T) {
	def := travelerDef(models.CountingSnapshot)

	tests := []struct {
		name      string
		achieved  []models.AchievedTier
		count     int64
		perTier   map[string]int64
		wantAll   []string
		wantNew   []string
		restamped bool
	}{
		{
			name:  "nothing reached",
			count: 0,
		},
		{
			name:    "exact threshold counts",
			count:   50,
			wantAll: []string{"traveler-starter", "traveler-bronze"},
			wantNew: []string{"traveler-starter", "traveler-bronze"},
		},
		{
			name:     "already achieved tiers are not repeated",
			achieved: []models.AchievedTier{{TierID: "traveler-starter", CompletedAt: 10}},
			count:    260,
			wantAll:  []string{"traveler-starter", "traveler-bronze", "traveler-silver"},
			wantNew:  []string{"traveler-bronze", "traveler-silver"},
		},
		{
			name: "stored order is rebuilt by ordinal",
			achieved: []models.AchievedTier{
				{TierID: "traveler-bronze", CompletedAt: 20},
				{TierID: "traveler-starter", CompletedAt: 10},
			},
			count:   60,
			wantAll: []string{"traveler-starter", "traveler-bronze"},
		},
		{
			name:      "explicit earlier instant restamps",
			achieved:  []models.AchievedTier{{TierID: "traveler-starter", CompletedAt: 10}},
			count:     1,
			perTier:   map[string]int64{"traveler-starter": 5},
			wantAll:   []string{"traveler-starter"},
			restamped: true,
		},
		{
			name:     "explicit later instant is ignored",
			achieved: []models.AchievedTier{{TierID: "traveler-starter", CompletedAt: 10}},
			count:    1,
			perTier:  map[string]int64{"traveler-starter": 50},
			wantAll:  []string{"traveler-starter"},
		},
		{
			name:    "everything at once",
			count:   1 << 40,
			wantAll: []string{"traveler-starter", "traveler-bronze", "traveler-silver", "traveler-gold", "traveler-platinum", "traveler-diamond"},
			wantNew: []string{"traveler-starter", "traveler-bronze", "traveler-silver", "traveler-gold", "traveler-platinum", "traveler-diamond"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateTiers(def, tt.achieved, tt.count, 99, tt.perTier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAll, nilIfEmpty(tierIDs(got.Achieved)))
			assert.Equal(t, tt.wantNew, nilIfEmpty(tierIDs(got.Newly)))
			assert.Equal(t, tt.restamped, got.Restamped)
			for _, n := range got.Newly {
				assert.Equal(t, int64(99), n.CompletedAt)
			}
		})
	}
}

func TestEvaluateTiers_RejectsDuplicates(t *testing.T) {
	def := travelerDef(models.CountingSnapshot)
	_, err := EvaluateTiers(def, []models.AchievedTier{
		{TierID: "traveler-starter", CompletedAt: 1},
		{TierID: "traveler-starter", CompletedAt: 2},
	}, 5, 1, nil)
	assert.ErrorIs(t, err, ErrInconsistentState)
}

func TestTiersReachedAndNextTier(t *testing.T) {
	def := travelerDef(models.CountingSnapshot)

	assert.Empty(t, TiersReached(def, 0))
	assert.Len(t, TiersReached(def, 999), 3)

	next := NextTier(def, 999)
	require.NotNil(t, next)
	assert.Equal(t, "traveler-gold", next.TierID)
	assert.Nil(t, NextTier(def, 10000))
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
