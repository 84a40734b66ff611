package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/multiverse-catalog/internal/site"
	"github.com/Sternrassler/multiverse-catalog/internal/testutil"
	"github.com/Sternrassler/multiverse-catalog/pkg/cache"
	"github.com/Sternrassler/multiverse-catalog/pkg/client"
	"github.com/Sternrassler/multiverse-catalog/pkg/pokemon"
	"github.com/Sternrassler/multiverse-catalog/pkg/rickandmorty"
	"github.com/Sternrassler/multiverse-catalog/pkg/search"
)

func newTestServer(t *testing.T) (*Server, *testutil.MockUpstream) {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)
	mock.ServeCharacters(30, 20)
	mock.ServePokemon(160)

	cacheManager := cache.NewManager(nil, cache.Config{})
	rm, err := client.New(client.DefaultConfig(rickandmorty.Upstream, mock.URL()+"/api", "test/1.0"), cacheManager, nil)
	require.NoError(t, err)
	pk, err := client.New(client.DefaultConfig(pokemon.Upstream, mock.URL()+"/api/v2", "test/1.0"), cacheManager, nil)
	require.NoError(t, err)

	characters := rickandmorty.NewService(rm, rickandmorty.Config{})
	pokedex := pokemon.NewService(pk, pokemon.Config{})
	return New(characters, pokedex, site.NewGenerator(characters, pokedex, site.DefaultConfig())), mock
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	get(t, s, "/api/rickandmorty/1")

	rec := get(t, s, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog_upstream_requests_total")
}

func TestCharacters(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/rickandmorty")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[ListResponse[rickandmorty.Character]](t, rec)
	assert.Equal(t, 30, body.Count)
	assert.True(t, body.Complete)
	assert.Empty(t, body.Warning)
	assert.Equal(t, "Rick Sanchez", body.Items[0].Name)
}

func TestCharacters_Partial(t *testing.T) {
	s, mock := newTestServer(t)
	mock.FailPage("/api/character", "2", http.StatusInternalServerError)

	rec := get(t, s, "/api/rickandmorty")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[ListResponse[rickandmorty.Character]](t, rec)
	assert.Equal(t, 20, body.Count)
	assert.False(t, body.Complete)
	assert.Equal(t, rickandmorty.ErrorMessage, body.Warning)
}

func TestCharacters_TotalFailure(t *testing.T) {
	s, mock := newTestServer(t)
	mock.FailPage("/api/character", "1", http.StatusInternalServerError)

	rec := get(t, s, "/api/rickandmorty")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), rickandmorty.ErrorMessage)
}

func TestCharacter(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		target     string
		wantStatus int
		wantBody   string
	}{
		{"/api/rickandmorty/2", http.StatusOK, "Morty Smith"},
		{"/api/rickandmorty/999", http.StatusNotFound, rickandmorty.NotFoundMessage},
		{"/api/rickandmorty/abc", http.StatusNotFound, rickandmorty.NotFoundMessage},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, s, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestCharacter_UpstreamStatusIsNotFound(t *testing.T) {
	s, mock := newTestServer(t)
	mock.SetResponse("/api/character/5", testutil.NewServerErrorResponse())

	rec := get(t, s, "/api/rickandmorty/5")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), rickandmorty.NotFoundMessage)
	assert.NotContains(t, rec.Body.String(), "Internal server error", "upstream bodies are not leaked")
}

func TestCharacter_TransportFailure(t *testing.T) {
	s, mock := newTestServer(t)
	mock.DropConnection("/api/character/5")

	rec := get(t, s, "/api/rickandmorty/5")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), rickandmorty.ErrorMessage)
}

func TestSearch(t *testing.T) {
	s, mock := newTestServer(t)

	rec := get(t, s, "/api/rickandmorty/search?name=rick")
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]rickandmorty.Character](t, rec)
	require.Len(t, results, 1)
	assert.Equal(t, "Rick Sanchez", results[0].Name)

	mock.Reset()
	rec = get(t, s, "/api/rickandmorty/search")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 0, mock.RequestCount(), "empty filter must not reach the upstream")
}

func TestSearch_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/rickandmorty/search?name=birdperson")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), search.ErrorMessage)

	rec = get(t, s, "/api/rickandmorty/search?status=zombie")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPokedex(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/pokemon")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[ListResponse[pokemon.Entry]](t, rec)
	assert.Equal(t, pokemon.PokedexSize, body.Count)
	assert.True(t, body.Complete)
	assert.Equal(t, "mew", body.Items[150].Name)
}

func TestPokemon(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/pokemon/Pikachu")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[pokemon.Pokemon](t, rec)
	assert.Equal(t, 25, p.ID)

	rec = get(t, s, "/api/pokemon/missingno")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), pokemon.NotFoundMessage)
}

func TestStaticParams(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/static-params/rickandmorty")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[StaticParamsResponse](t, rec)
	assert.Len(t, body.Params, 30)
	assert.True(t, body.Complete)
	assert.Equal(t, "1", body.Params[0])

	rec = get(t, s, "/api/static-params/pokemon")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"bulbasaur"`))

	rec = get(t, s, "/api/static-params/digimon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
