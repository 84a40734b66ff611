package pokemon

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pagination"
)

// ErrInvalidName is returned for an empty id or name.
var ErrInvalidName = errors.New("invalid pokemon id or name")

// DefaultPageSize is the list page size requested from the upstream.
const DefaultPageSize = 50

// Config holds service configuration.
type Config struct {
	// PageSize is the limit sent with every list request.
	PageSize int

	// Limit caps the Pokédex. Zero means PokedexSize.
	Limit int

	// Concurrency > 1 fetches list pages in parallel once the page count is known.
	Concurrency int
}

// Service reads the Pokédex through an upstream client.
type Service struct {
	client *client.Client
	config Config
	group  singleflight.Group
	logger zerolog.Logger
}

// NewService creates a Pokédex service.
func NewService(c *client.Client, cfg Config) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Limit <= 0 {
		cfg.Limit = PokedexSize
	}
	return &Service{
		client: c,
		config: cfg,
		logger: logging.NewLogger("pokemon"),
	}
}

// FetchPage fetches one page of the Pokédex. Pages are numbered from 1 and
// mapped onto offset/limit.
func (s *Service) FetchPage(ctx context.Context, number int) (pagination.Page[Entry], error) {
	ctx = cache.WithDirective(ctx, cache.Directive{Revalidate: ListRevalidate})

	limit := s.config.PageSize
	query := url.Values{
		"offset": {strconv.Itoa((number - 1) * limit)},
		"limit":  {strconv.Itoa(limit)},
	}

	var body listPage
	if err := s.client.GetJSON(ctx, "/pokemon", query, &body); err != nil {
		return pagination.Page[Entry]{}, err
	}

	entries := make([]Entry, 0, len(body.Results))
	for _, r := range body.Results {
		entries = append(entries, Entry{ID: idFromURL(r.URL), Name: r.Name, URL: r.URL})
	}

	return pagination.Page[Entry]{
		Number:     number,
		Items:      entries,
		Next:       body.Next,
		TotalPages: (body.Count + limit - 1) / limit,
		Count:      body.Count,
	}, nil
}

// Pokedex returns the first Limit entries in Pokédex order.
func (s *Service) Pokedex(ctx context.Context) pagination.Result[Entry] {
	opts := pagination.Options{MaxItems: s.config.Limit}

	var res pagination.Result[Entry]
	if s.config.Concurrency > 1 {
		cfg := pagination.DefaultConfig()
		cfg.MaxConcurrency = s.config.Concurrency
		cfg.Options = opts
		res = pagination.NewBatchFetcher[Entry](s, cfg).FetchAll(ctx)
	} else {
		res = pagination.Walk[Entry](ctx, s, opts)
	}

	if !res.Complete {
		s.logger.Warn().Err(res.Cause).Int("items", len(res.Items)).Msg("Pokedex incomplete")
	} else {
		s.logger.Debug().Int("items", len(res.Items)).Int("pages", res.Pages).Msg("Pokedex loaded")
	}
	return res
}

// Pokemon fetches one Pokémon by id or name. Names are matched
// case-insensitively. Any non-success upstream status yields an error
// matching client.ErrNotFound. Concurrent lookups of the same key share one
// request that outlives the caller that started it.
func (s *Service) Pokemon(ctx context.Context, idOrName string) (*Pokemon, error) {
	key := strings.ToLower(strings.TrimSpace(idOrName))
	if key == "" || strings.Contains(key, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, idOrName)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := s.group.DoChan(key, func() (any, error) {
		ctx := cache.WithDirective(context.WithoutCancel(ctx), cache.Directive{Revalidate: DetailRevalidate})

		var p Pokemon
		if err := s.client.GetJSON(ctx, "/pokemon/"+url.PathEscape(key), nil, &p); err != nil {
			return nil, fmt.Errorf("fetch pokemon %s: %w", key, client.EntityError(err))
		}
		return &p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pokemon), nil
	}
}
