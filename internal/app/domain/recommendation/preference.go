package recommendation

import (
	"github.com/google/uuid"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// PreferenceAnalyzer derives a PreferenceVector from an interaction history.
// It holds no state; the output depends only on its input.
type PreferenceAnalyzer struct{}

func NewPreferenceAnalyzer() *PreferenceAnalyzer {
	return &PreferenceAnalyzer{}
}

// Analyze adds ActionWeight(action) to every tag of the interacted location and
// records every interacted location in the visited set, whatever its action type.
func (a *PreferenceAnalyzer) Analyze(interactions []models.Interaction) models.PreferenceVector {
	prefs := models.PreferenceVector{
		TagWeight:  make(map[string]float64),
		VisitedSet: make(map[uuid.UUID]struct{}, len(interactions)),
	}
	for _, i := range interactions {
		prefs.VisitedSet[i.LocationID] = struct{}{}

		w := ActionWeight(i.ActionType)
		if w == 0 {
			continue
		}
		for tag := range i.LocationTags {
			prefs.TagWeight[tag] += w
		}
	}
	return prefs
}

// tagPreferences treats a location's own tags as a preference vector, each tag
// weighted as if the location had been visited once.
func tagPreferences(tags models.TagSet) map[string]float64 {
	weights := make(map[string]float64, len(tags))
	for tag := range tags {
		weights[tag] = VisitedWeight
	}
	return weights
}

// locationSet collects the distinct location ids of a set of interactions.
func locationSet(interactions []models.Interaction) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(interactions))
	for _, i := range interactions {
		set[i.LocationID] = struct{}{}
	}
	return set
}
