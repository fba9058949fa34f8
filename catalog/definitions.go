package catalog

import (
	"badge-progress-system/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Badge ids referenced by the event normalizers and tests.
const (
	BadgeProfilePro          = "profile-pro"
	BadgeDecentralandCitizen = "decentraland-citizen"
	BadgeFirstEmote          = "first-emote"
	BadgeFirstCollectible    = "first-collectible"
	BadgeFirstLandOwner      = "landowner"
	BadgeEmoteCreator        = "emote-creator"
	BadgeVerticalVoyager     = "vertical-voyager"
	BadgeEpicEnsemble        = "epic-ensemble"
	BadgeLegendaryLook       = "legendary-look"
	BadgeMythicModel         = "mythic-model"
	BadgeTraveler            = "traveler"
	BadgeWalkabout           = "walkabout-wanderer"
	BadgeEventEnthusiast     = "event-enthusiast"
	BadgeEmotionista         = "emotionista"
	BadgeFashionista         = "fashionista"
	BadgeSocialButterfly     = "social-butterfly"
)

var numbers = message.NewPrinter(language.English)

var standardTierNames = []string{"Starter", "Bronze", "Silver", "Gold", "Platinum", "Diamond"}

// leveled builds a leveled badge using the standard six tier names.
func leveled(id, name, description, unit string, counting models.CountingMode, thresholds ...int64) models.BadgeDefinition {
	def := models.BadgeDefinition{
		ID:          id,
		Name:        name,
		Description: description,
		Category:    "leveled",
		Kind:        models.KindLeveledTier,
		Counting:    counting,
	}
	for i, threshold := range thresholds {
		def.Tiers = append(def.Tiers, models.Tier{
			Ordinal:     i,
			Name:        standardTierNames[i],
			Threshold:   threshold,
			Description: tierDescription(threshold, unit),
		})
	}
	return def
}

func tierDescription(threshold int64, unit string) string {
	if threshold == 1 {
		return "Reach 1 " + unit
	}
	return numbers.Sprintf("Reach %d %ss", threshold, unit)
}

// Definitions is the built-in badge catalog.
var Definitions = []models.BadgeDefinition{
	{
		ID:          BadgeProfilePro,
		Name:        "Profile Pro",
		Description: "Filled in your profile information",
		Category:    "profile",
		Kind:        models.KindCounter,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeDecentralandCitizen,
		Name:        "Decentraland Citizen",
		Description: "Logged in for the first time",
		Category:    "explorer",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeFirstEmote,
		Name:        "Emote Debut",
		Description: "Played your first emote",
		Category:    "social",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeFirstCollectible,
		Name:        "Collector",
		Description: "Bought your first collectible on the marketplace",
		Category:    "collector",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeFirstLandOwner,
		Name:        "Landowner",
		Description: "Acquired your first parcel or estate",
		Category:    "collector",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeEmoteCreator,
		Name:        "Emote Creator",
		Description: "Published an emote collection",
		Category:    "creator",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeVerticalVoyager,
		Name:        "Vertical Voyager",
		Description: "Climbed above 500 meters in-world",
		Category:    "explorer",
		Kind:        models.KindUniqueEvent,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeEpicEnsemble,
		Name:        "Epic Ensemble",
		Description: "Equipped 3 epic wearables at the same time",
		Category:    "collector",
		Kind:        models.KindEquipmentSet,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeLegendaryLook,
		Name:        "Legendary Look",
		Description: "Equipped 3 legendary wearables at the same time",
		Category:    "collector",
		Kind:        models.KindEquipmentSet,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	{
		ID:          BadgeMythicModel,
		Name:        "Mythic Model",
		Description: "Equipped 3 mythic wearables at the same time",
		Category:    "collector",
		Kind:        models.KindEquipmentSet,
		Criteria:    models.BadgeCriteria{Steps: 1},
	},
	leveled(BadgeTraveler, "Traveler", "Visit unique scenes", "scene", models.CountingSnapshot,
		1, 50, 250, 1000, 2500, 10000),
	leveled(BadgeWalkabout, "Walkabout Wanderer", "Walk across Genesis City", "step", models.CountingDelta,
		1000, 5000, 25000, 100000, 500000, 2000000),
	leveled(BadgeEventEnthusiast, "Event Enthusiast", "Attend events", "event", models.CountingSnapshot,
		1, 10, 50, 100, 250, 500),
	leveled(BadgeEmotionista, "Emotionista", "Play emotes", "emote", models.CountingDelta,
		100, 1000, 5000, 10000, 50000, 100000),
	leveled(BadgeFashionista, "Fashionista", "Buy wearables", "wearable", models.CountingSnapshot,
		1, 10, 50, 100, 250, 500),
	leveled(BadgeSocialButterfly, "Social Butterfly", "Connect with other players", "friend", models.CountingSnapshot,
		1, 5, 25, 50, 100, 250),
}

// Default returns the built-in catalog.
func Default() *StaticCatalog {
	return MustNew(Definitions)
}
