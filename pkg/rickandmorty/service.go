package rickandmorty

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pagination"
	"github.com/Sternrassler/multiverse-catalog/pkg/search"
)

// ErrInvalidID is returned for non-positive character ids.
var ErrInvalidID = errors.New("invalid character id")

// Config holds service configuration.
type Config struct {
	// Concurrency > 1 fetches list pages in parallel once the page count is known.
	Concurrency int
}

// Service reads the character catalog through an upstream client.
type Service struct {
	client *client.Client
	config Config
	group  singleflight.Group
	logger zerolog.Logger
}

// NewService creates a character service.
func NewService(c *client.Client, cfg Config) *Service {
	return &Service{
		client: c,
		config: cfg,
		logger: logging.NewLogger("rickandmorty"),
	}
}

// FetchPage fetches one page of the character list.
func (s *Service) FetchPage(ctx context.Context, number int) (pagination.Page[Character], error) {
	ctx = cache.WithDirective(ctx, cache.Directive{Revalidate: ListRevalidate})

	var body characterPage
	query := url.Values{"page": {strconv.Itoa(number)}}
	if err := s.client.GetJSON(ctx, "/character", query, &body); err != nil {
		return pagination.Page[Character]{}, err
	}

	return pagination.Page[Character]{
		Number:     number,
		Items:      body.Results,
		Next:       body.Info.Next,
		TotalPages: body.Info.Pages,
		Count:      body.Info.Count,
	}, nil
}

// Characters walks the whole catalog. A Partial result carries the characters
// gathered before the failure.
func (s *Service) Characters(ctx context.Context) pagination.Result[Character] {
	var res pagination.Result[Character]
	if s.config.Concurrency > 1 {
		cfg := pagination.DefaultConfig()
		cfg.MaxConcurrency = s.config.Concurrency
		res = pagination.NewBatchFetcher[Character](s, cfg).FetchAll(ctx)
	} else {
		res = pagination.Walk[Character](ctx, s, pagination.DefaultOptions())
	}

	if !res.Complete {
		s.logger.Warn().Err(res.Cause).Int("items", len(res.Items)).Msg("Character catalog incomplete")
	} else {
		s.logger.Info().Int("items", len(res.Items)).Int("pages", res.Pages).Msg("Character catalog loaded")
	}
	return res
}

// Character fetches one character. Any non-success upstream status yields an
// error matching client.ErrNotFound. Concurrent calls for the same id share
// one request, which keeps running when the caller that started it goes away.
func (s *Service) Character(ctx context.Context, id int) (*Character, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strconv.Itoa(id)
	ch := s.group.DoChan(key, func() (any, error) {
		ctx := cache.WithDirective(context.WithoutCancel(ctx), cache.Directive{Revalidate: DetailRevalidate})

		var c Character
		if err := s.client.GetJSON(ctx, "/character/"+key, nil, &c); err != nil {
			return nil, fmt.Errorf("fetch character %d: %w", id, client.EntityError(err))
		}
		return &c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Character), nil
	}
}

// CharacterByID parses id before fetching, as path parameters arrive as text.
func (s *Service) CharacterByID(ctx context.Context, id string) (*Character, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.Character(ctx, n)
}

// Search issues one filtered list request and returns the first page of
// matches. Searches are never cached. The upstream answers 404 when nothing
// matches, which surfaces as an error like any other failure.
func (s *Service) Search(ctx context.Context, f search.Filter) ([]Character, error) {
	if f.IsEmpty() {
		return []Character{}, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx = cache.WithDirective(ctx, cache.Directive{NoStore: true})

	var body characterPage
	if err := s.client.GetJSON(ctx, "/character", f.Query(), &body); err != nil {
		return nil, fmt.Errorf("search characters: %w", err)
	}
	if body.Results == nil {
		body.Results = []Character{}
	}
	return body.Results, nil
}
