package search

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// Relevance tiers, best first.
const (
	TierExactName = iota + 1
	TierNamePrefix
	TierNameContains
	TierAddressContains
	TierOther
)

// SearchRanker filters, orders and pages search rows. It has no dependencies
// and the same input always produces the same page.
type SearchRanker struct{}

func NewSearchRanker() *SearchRanker {
	return &SearchRanker{}
}

// Page is a resolved limit/offset pair.
type Page struct {
	Limit  int
	Offset int
}

type candidate struct {
	loc  models.LocationStats
	name string
	tier int
}

// Rank applies the query and filters to rows, sorts the survivors by opts and
// returns the requested page. Total counts every row that passed the filters.
func (r *SearchRanker) Rank(rows []models.LocationStats, query string, filters models.SearchFilters, opts models.SortOptions, page Page) models.SearchResult {
	// Casers carry state and are not shared between calls.
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))

	matched := make([]candidate, 0, len(rows))
	for _, loc := range rows {
		name := fold.String(loc.Name)
		address := fold.String(loc.Address)
		summary := ""
		if loc.Summary != nil {
			summary = fold.String(*loc.Summary)
		}
		if q != "" && !strings.Contains(name, q) && !strings.Contains(address, q) && !strings.Contains(summary, q) {
			continue
		}
		if !passesFilters(loc, filters) {
			continue
		}
		matched = append(matched, candidate{loc: loc, name: name, tier: tier(q, name, address)})
	}

	slices.SortFunc(matched, comparator(q, opts))

	total := len(matched)
	result := models.SearchResult{
		Locations: []models.LocationStats{},
		Total:     total,
		HasMore:   page.Offset+page.Limit < total,
	}
	if page.Offset >= total || page.Limit <= 0 {
		return result
	}
	end := min(page.Offset+page.Limit, total)
	for _, c := range matched[page.Offset:end] {
		result.Locations = append(result.Locations, c.loc)
	}
	return result
}

func passesFilters(loc models.LocationStats, f models.SearchFilters) bool {
	if len(f.Types) > 0 && !loc.Tags.Intersects(f.Types) {
		return false
	}
	if f.MinRating != nil && (loc.Rating == nil || *loc.Rating < *f.MinRating) {
		return false
	}
	if f.BusinessStatus != nil && (loc.BusinessStatus == nil || *loc.BusinessStatus != *f.BusinessStatus) {
		return false
	}
	return true
}

// tier expects q, name and address already case folded.
func tier(q, name, address string) int {
	switch {
	case q == "":
		return TierOther
	case name == q:
		return TierExactName
	case strings.HasPrefix(name, q):
		return TierNamePrefix
	case strings.Contains(name, q):
		return TierNameContains
	case strings.Contains(address, q):
		return TierAddressContains
	default:
		return TierOther
	}
}

func byID(a, b candidate) int {
	return bytes.Compare(a.loc.ID[:], b.loc.ID[:])
}

// compareRating orders rated before unrated; rated locations by rating in the given order.
func compareRating(a, b *float64, order models.SortOrder) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	}
	less := *a < *b
	if order == models.SortAsc {
		if less {
			return -1
		}
		return 1
	}
	if less {
		return 1
	}
	return -1
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func comparator(q string, opts models.SortOptions) func(a, b candidate) int {
	switch opts.SortBy {
	case models.SortByRating:
		order := opts.SortOrder
		if order == "" {
			order = models.SortDesc
		}
		return func(a, b candidate) int {
			if c := compareRating(a.loc.Rating, b.loc.Rating, order); c != 0 {
				return c
			}
			return byID(a, b)
		}
	case models.SortByPopularity:
		return func(a, b candidate) int {
			if c := compareInt(b.loc.VisitCount, a.loc.VisitCount); c != 0 {
				return c
			}
			if c := compareInt(b.loc.WantToVisitCount, a.loc.WantToVisitCount); c != 0 {
				return c
			}
			return byID(a, b)
		}
	case models.SortByName:
		desc := opts.SortOrder == models.SortDesc
		return func(a, b candidate) int {
			c := strings.Compare(a.name, b.name)
			if desc {
				c = -c
			}
			if c != 0 {
				return c
			}
			return byID(a, b)
		}
	default:
		return func(a, b candidate) int {
			if q != "" {
				if c := compareInt(a.tier, b.tier); c != 0 {
					return c
				}
			}
			if c := compareRating(a.loc.Rating, b.loc.Rating, models.SortDesc); c != 0 {
				return c
			}
			return byID(a, b)
		}
	}
}
