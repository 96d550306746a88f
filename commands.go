package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/recommendation"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/search"
	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

const usage = `usage: loci-discovery <command> [arguments]

commands:
  recommend <personId> [limit]
  similar <locationId> [limit]
  popular [limit]
  search [-types a,b] [-min-rating 4] [-status OPERATIONAL] [-sort relevance] [-order desc] [-limit 20] [-offset 0] <query>
  names <query> [limit]
  filters
  record <personId> <locationId> <action> [description]`

var errUsage = errors.New("usage")

type commands struct {
	recommendations recommendation.Service
	search          search.Service
	out             io.Writer
}

func (c *commands) dispatch(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	var (
		result any
		err    error
	)
	switch name {
	case "recommend":
		result, err = c.recommend(ctx, rest)
	case "similar":
		result, err = c.similar(ctx, rest)
	case "popular":
		result, err = c.popular(ctx, rest)
	case "search":
		result, err = c.searchLocations(ctx, rest)
	case "names":
		result, err = c.names(ctx, rest)
	case "filters":
		result, err = c.search.GetSearchFilters(ctx)
	case "record":
		result, err = c.record(ctx, rest)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", raw, models.ErrValidation)
	}
	return id, nil
}

// optionalLimit reads args[i] as a limit, 0 when absent.
func optionalLimit(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: %w", args[i], models.ErrValidation)
	}
	return n, nil
}

func (c *commands) recommend(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errUsage
	}
	personID, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	limit, err := optionalLimit(args, 1)
	if err != nil {
		return nil, err
	}
	return c.recommendations.GetPersonalRecommendations(ctx, personID, limit)
}

func (c *commands) similar(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errUsage
	}
	locationID, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	limit, err := optionalLimit(args, 1)
	if err != nil {
		return nil, err
	}
	return c.recommendations.GetSimilarLocations(ctx, locationID, limit)
}

func (c *commands) popular(ctx context.Context, args []string) (any, error) {
	limit, err := optionalLimit(args, 0)
	if err != nil {
		return nil, err
	}
	return c.recommendations.GetPopularLocations(ctx, limit)
}

func (c *commands) searchLocations(ctx context.Context, args []string) (any, error) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	types := fs.String("types", "", "comma separated place types")
	minRating := fs.Float64("min-rating", -1, "minimum rating")
	status := fs.String("status", "", "business status")
	sortBy := fs.String("sort", string(models.SortByRelevance), "relevance, rating, popularity or name")
	order := fs.String("order", "", "asc or desc")
	limit := fs.Int("limit", search.DefaultSearchLimit, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	var filters models.SearchFilters
	if *types != "" {
		filters.Types = models.NewTagSet(strings.Split(*types, ",")...)
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "min-rating" {
			filters.MinRating = minRating
		}
	})
	if *status != "" {
		bs := models.BusinessStatus(strings.ToUpper(*status))
		filters.BusinessStatus = &bs
	}

	opts := models.SortOptions{SortBy: models.SortBy(*sortBy), SortOrder: models.SortOrder(*order)}
	return c.search.SearchLocations(ctx, strings.Join(fs.Args(), " "), filters, opts, *limit, *offset)
}

func (c *commands) names(ctx context.Context, args []string) (any, error) {
	if len(args) < 1 {
		return nil, errUsage
	}
	limit, err := optionalLimit(args, 1)
	if err != nil {
		return nil, err
	}
	return c.search.FuzzySearchNames(ctx, args[0], limit)
}

func (c *commands) record(ctx context.Context, args []string) (any, error) {
	if len(args) < 3 {
		return nil, errUsage
	}
	personID, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	locationID, err := parseID(args[1])
	if err != nil {
		return nil, err
	}
	action, err := models.ParseActionType(args[2])
	if err != nil {
		return nil, err
	}
	var description *string
	if len(args) > 3 {
		d := strings.Join(args[3:], " ")
		description = &d
	}
	return c.recommendations.RecordInteraction(ctx, personID, locationID, action, description)
}
