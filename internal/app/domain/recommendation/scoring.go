package recommendation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// Score component caps. Tag + Rating + Popularity + Collaborative never exceeds MaxScore.
const (
	TagScoreCap           = 40.0
	RatingScoreCap        = 30.0
	PopularityScoreCap    = 15.0
	CollaborativeScoreCap = 15.0
	MaxScore              = TagScoreCap + RatingScoreCap + PopularityScoreCap + CollaborativeScoreCap

	// TagWeightMultiplier scales an accumulated tag weight into tag score points.
	TagWeightMultiplier = 2.0
	// PopularityLogFactor scales log10(ratingCount+1) into popularity points.
	PopularityLogFactor = 5.0
	MaxRating           = 5.0

	HighRatingThreshold  = 4.5
	ManyRatingsThreshold = 100

	// PopularFallbackScore is assigned to every entry of the popularity fallback list.
	PopularFallbackScore = 50.0

	// DefaultCoVisitorSample bounds how many co-visitors feed the collaborative term.
	DefaultCoVisitorSample = 10
	// maxMatchedTagsInReason bounds the tag names quoted in a reason string.
	maxMatchedTagsInReason = 3
)

// Preference weight per action type. Action types absent here add no tag weight.
const (
	VisitedWeight       = 3.0
	WantToRevisitWeight = 2.0
	WantToVisitWeight   = 1.0
)

// ActionWeight returns the preference weight of an action type, 0 when it carries none.
func ActionWeight(action models.ActionType) float64 {
	switch action {
	case models.ActionVisited:
		return VisitedWeight
	case models.ActionWantToRevisit:
		return WantToRevisitWeight
	case models.ActionWantToVisit:
		return WantToVisitWeight
	default:
		return 0
	}
}

const (
	ReasonPopular           = "popular location"
	ReasonHighRating        = "rating is high"
	ReasonRecommendedByMany = "recommended by many"
	ReasonDefault           = "recommended for you"
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// TagScore sums tagWeight[tag]*TagWeightMultiplier over the candidate's tags, capped at
// TagScoreCap. It also returns the tags that contributed, heaviest first.
func TagScore(tags models.TagSet, tagWeight map[string]float64) (float64, []string) {
	var total float64
	var matched []string
	for tag := range tags {
		w := tagWeight[tag]
		if w <= 0 {
			continue
		}
		total += w * TagWeightMultiplier
		matched = append(matched, tag)
	}
	sort.Slice(matched, func(i, j int) bool {
		wi, wj := tagWeight[matched[i]], tagWeight[matched[j]]
		if wi != wj {
			return wi > wj
		}
		return matched[i] < matched[j]
	})
	return clamp(total, 0, TagScoreCap), matched
}

// RatingScore maps a 0-5 rating linearly onto 0-RatingScoreCap. No rating scores 0.
func RatingScore(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	return clamp(*rating/MaxRating*RatingScoreCap, 0, RatingScoreCap)
}

// PopularityScore is min(log10(ratingCount+1)*PopularityLogFactor, PopularityScoreCap).
func PopularityScore(ratingCount *int) float64 {
	if ratingCount == nil || *ratingCount <= 0 {
		return 0
	}
	return clamp(math.Log10(float64(*ratingCount)+1)*PopularityLogFactor, 0, PopularityScoreCap)
}

// CollaborativeScore scales an average Jaccard similarity into 0-CollaborativeScoreCap.
func CollaborativeScore(avgSimilarity float64) float64 {
	return clamp(avgSimilarity*CollaborativeScoreCap, 0, CollaborativeScoreCap)
}

// TotalScore sums the components and bounds the result to [0, MaxScore].
func TotalScore(b models.ScoreBreakdown) float64 {
	return clamp(b.Total(), 0, MaxScore)
}

func matchedTagPhrase(prefix string, matched []string) string {
	if len(matched) > maxMatchedTagsInReason {
		matched = matched[:maxMatchedTagsInReason]
	}
	return fmt.Sprintf("%s %s", prefix, strings.Join(matched, ", "))
}

// Reason picks the single justification for a recommendation, by priority:
// matched tags, high rating, many ratings, generic.
func Reason(b models.ScoreBreakdown, matched []string, loc models.Location) string {
	switch {
	case b.Tag > 0 && len(matched) > 0:
		return matchedTagPhrase("matches your interest in", matched)
	case loc.Rating != nil && *loc.Rating >= HighRatingThreshold:
		return ReasonHighRating
	case loc.RatingCount != nil && *loc.RatingCount > ManyRatingsThreshold:
		return ReasonRecommendedByMany
	default:
		return ReasonDefault
	}
}

// similarReason is Reason for location-to-location similarity.
func similarReason(b models.ScoreBreakdown, shared []string, loc models.Location) string {
	if b.Tag > 0 && len(shared) > 0 {
		return matchedTagPhrase("shares tags", shared)
	}
	return Reason(models.ScoreBreakdown{}, nil, loc)
}
