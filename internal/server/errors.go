package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
	"github.com/Sternrassler/multiverse-catalog/pkg/search"
)

// messages holds the fixed user-facing texts of one domain.
type messages struct {
	notFound string
	failure  string
}

var (
	characterMessages = messages{rickandmorty.NotFoundMessage, rickandmorty.ErrorMessage}
	pokemonMessages   = messages{pokemon.NotFoundMessage, pokemon.ErrorMessage}
	searchMessages    = messages{search.ErrorMessage, search.ErrorMessage}
)

// mapError converts a service error into an echo.HTTPError carrying the
// domain's fixed message. Upstream details are logged, never returned.
func mapError(err error, m messages) *echo.HTTPError {
	switch {
	case client.IsNotFound(err),
		errors.Is(err, rickandmorty.ErrInvalidID),
		errors.Is(err, pokemon.ErrInvalidName):
		return echo.NewHTTPError(http.StatusNotFound, m.notFound).SetInternal(err)

	case errors.Is(err, search.ErrInvalidFilter),
		errors.Is(err, site.ErrUnknownDomain):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)

	case errors.Is(err, client.ErrRateLimited):
		return echo.NewHTTPError(http.StatusServiceUnavailable, m.failure).SetInternal(err)

	default:
		return echo.NewHTTPError(http.StatusBadGateway, m.failure).SetInternal(err)
	}
}
