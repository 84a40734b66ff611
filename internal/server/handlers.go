package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Sternrassler/multiverse-catalog/pkg/pagination"
	"github.com/Sternrassler/multiverse-catalog/pkg/search"
)

// ListResponse is the body of a full-catalog route. Complete is false when
// the walk stopped early; Items then holds what was gathered before the failure.
type ListResponse[T any] struct {
	Count    int    `json:"count"`
	Complete bool   `json:"complete"`
	Items    []T    `json:"items"`
	Warning  string `json:"warning,omitempty"`
}

// StaticParamsResponse is the body of the static-params route.
type StaticParamsResponse struct {
	Domain   string   `json:"domain"`
	Params   []string `json:"params"`
	Complete bool     `json:"complete"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// listResult renders a walk result. A walk that produced nothing is a failure.
func listResult[T any](c echo.Context, res pagination.Result[T], m messages) error {
	if !res.Complete && len(res.Items) == 0 {
		return mapError(res.Err(), m)
	}

	body := ListResponse[T]{
		Count:    len(res.Items),
		Complete: res.Complete,
		Items:    res.Items,
	}
	if body.Items == nil {
		body.Items = []T{}
	}
	if !res.Complete {
		body.Warning = m.failure
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleCharacters(c echo.Context) error {
	return listResult(c, s.characters.Characters(c.Request().Context()), characterMessages)
}

func (s *Server) handleCharacter(c echo.Context) error {
	character, err := s.characters.CharacterByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err, characterMessages)
	}
	return c.JSON(http.StatusOK, character)
}

func (s *Server) handleSearch(c echo.Context) error {
	f := search.FilterFromQuery(c.QueryParams())
	if err := f.Validate(); err != nil {
		return mapError(err, searchMessages)
	}

	results, err := s.characters.Search(c.Request().Context(), f)
	if err != nil {
		return mapError(err, searchMessages)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handlePokedex(c echo.Context) error {
	return listResult(c, s.pokedex.Pokedex(c.Request().Context()), pokemonMessages)
}

func (s *Server) handlePokemon(c echo.Context) error {
	p, err := s.pokedex.Pokemon(c.Request().Context(), c.Param("name"))
	if err != nil {
		return mapError(err, pokemonMessages)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleStaticParams(c echo.Context) error {
	domain := c.Param("domain")
	params, err := s.generator.StaticParams(c.Request().Context(), domain)
	if err != nil && len(params) == 0 {
		return mapError(err, messages{notFound: err.Error(), failure: "Static parameters unavailable."})
	}

	return c.JSON(http.StatusOK, StaticParamsResponse{
		Domain:   domain,
		Params:   params,
		Complete: err == nil,
	})
}
