// Package site pre-generates detail pages: it lists every detail identifier
// of a catalog and warms the response cache for each of them.
package site

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

// Catalog domains.
const (
	DomainRickAndMorty = "rickandmorty"
	DomainPokemon      = "pokemon"
)

// Domains lists every domain in generation order.
var Domains = []string{DomainRickAndMorty, DomainPokemon}

// ErrUnknownDomain is returned for a domain other than those in Domains.
var ErrUnknownDomain = errors.New("unknown catalog domain")

// Config holds generator configuration.
type Config struct {
	// Concurrency bounds the detail fetches in flight during Prewarm.
	Concurrency int
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{Concurrency: 8}
}

// Generator produces static parameters and warms detail entries.
type Generator struct {
	characters *rickandmorty.Service
	pokedex    *pokemon.Service
	config     Config
	logger     zerolog.Logger
}

// NewGenerator creates a generator. Either service may be nil, in which case
// its domain reports ErrUnknownDomain.
func NewGenerator(characters *rickandmorty.Service, pokedex *pokemon.Service, cfg Config) *Generator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Generator{
		characters: characters,
		pokedex:    pokedex,
		config:     cfg,
		logger:     logging.NewLogger("site"),
	}
}

// StaticParams returns the detail identifier of every entry in domain:
// character ids and Pokémon names. When the catalog walk is partial the
// identifiers gathered so far are returned together with a
// *pagination.PartialError.
func (g *Generator) StaticParams(ctx context.Context, domain string) ([]string, error) {
	switch {
	case domain == DomainRickAndMorty && g.characters != nil:
		res := g.characters.Characters(ctx)
		params := make([]string, 0, len(res.Items))
		for _, c := range res.Items {
			params = append(params, strconv.Itoa(c.ID))
		}
		return params, res.Err()

	case domain == DomainPokemon && g.pokedex != nil:
		res := g.pokedex.Pokedex(ctx)
		params := make([]string, 0, len(res.Items))
		for _, e := range res.Items {
			params = append(params, e.Name)
		}
		return params, res.Err()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
}

// Report summarizes one Prewarm run.
type Report struct {
	Domain   string
	Entries  int
	Warmed   int
	NotFound int
	Failed   int
	// Complete is false when the catalog walk itself was partial.
	Complete bool
	Duration time.Duration
}

// Prewarm fetches every detail entry of domain once so later reads are
// served from the cache. Detail failures are counted, not returned; the
// returned error reports an unknown domain, a partial catalog walk or a
// cancelled context.
func (g *Generator) Prewarm(ctx context.Context, domain string) (Report, error) {
	start := time.Now()
	report := Report{Domain: domain}

	params, walkErr := g.StaticParams(ctx, domain)
	if errors.Is(walkErr, ErrUnknownDomain) {
		return report, walkErr
	}
	report.Entries = len(params)
	report.Complete = walkErr == nil

	fetch := g.detailFetcher(domain)

	var warmed, notFound, failed atomic.Int64
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.config.Concurrency)
	for _, param := range params {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := fetch(gctx, param)
			switch {
			case err == nil:
				warmed.Add(1)
			case client.IsNotFound(err):
				notFound.Add(1)
			default:
				failed.Add(1)
				g.logger.Warn().Err(err).Str("domain", domain).Str("id", param).Msg("Prewarm fetch failed")
			}
			return nil
		})
	}
	waitErr := grp.Wait()

	report.Warmed = int(warmed.Load())
	report.NotFound = int(notFound.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)

	g.logger.Info().
		Str("domain", domain).
		Int("entries", report.Entries).
		Int("warmed", report.Warmed).
		Int("failed", report.Failed).
		Bool("complete", report.Complete).
		Dur("duration", report.Duration).
		Msg("Prewarm finished")

	if waitErr != nil {
		return report, waitErr
	}
	return report, walkErr
}

func (g *Generator) detailFetcher(domain string) func(context.Context, string) error {
	if domain == DomainPokemon {
		return func(ctx context.Context, name string) error {
			_, err := g.pokedex.Pokemon(ctx, name)
			return err
		}
	}
	return func(ctx context.Context, id string) error {
		_, err := g.characters.CharacterByID(ctx, id)
		return err
	}
}
