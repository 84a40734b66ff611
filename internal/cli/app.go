package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/multiverse-catalog/internal/config"
	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/logging"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/ratelimit"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
)

// App wires the catalog services from configuration.
type App struct {
	Config     *config.Config
	Redis      *redis.Client
	Cache      *cache.Manager
	Characters *rickandmorty.Service
	Pokedex    *pokemon.Service
	Generator  *site.Generator
}

// NewApp connects to Redis, if configured, and builds every service. Without
// a Redis address the cache and rate limit state stay in process.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}

	if cfg.Redis.Addr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			app.Redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Cache = cache.NewManager(app.Redis, cfg.CacheSetup())

	rm, err := app.newClient(rickandmorty.Upstream, cfg.Upstream.RickAndMortyURL)
	if err != nil {
		return nil, err
	}
	pk, err := app.newClient(pokemon.Upstream, cfg.Upstream.PokemonURL)
	if err != nil {
		return nil, err
	}

	app.Characters = rickandmorty.NewService(rm, rickandmorty.Config{
		Concurrency: cfg.Pagination.Concurrency,
	})
	app.Pokedex = pokemon.NewService(pk, pokemon.Config{
		PageSize:    cfg.Pagination.PokemonPageSize,
		Limit:       cfg.Pagination.PokedexLimit,
		Concurrency: cfg.Pagination.Concurrency,
	})
	app.Generator = site.NewGenerator(app.Characters, app.Pokedex, site.DefaultConfig())

	return app, nil
}

func (a *App) newClient(upstream, baseURL string) (*client.Client, error) {
	tracker := ratelimit.NewTracker(a.Redis, a.Config.RateLimitSetup(upstream), logging.NewLogger("ratelimit"))
	c, err := client.New(a.Config.ClientConfig(upstream, baseURL), a.Cache, tracker)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", upstream, err)
	}
	return c, nil
}

// Close releases the Redis connection.
func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
