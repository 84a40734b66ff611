package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	characterStatuses = []string{"Alive", "Dead", "unknown"}
	characterGenders  = []string{"Male", "Female", "Genderless", "unknown"}
	knownCharacters   = map[int]string{1: "Rick Sanchez", 2: "Morty Smith", 3: "Summer Smith"}
	knownPokemon      = map[int]string{1: "bulbasaur", 4: "charmander", 7: "squirtle", 25: "pikachu", 151: "mew"}
)

// CharacterName returns the name the mock assigns to character id.
func CharacterName(id int) string {
	if name, ok := knownCharacters[id]; ok {
		return name
	}
	return fmt.Sprintf("Character %d", id)
}

// PokemonName returns the name the mock assigns to Pokémon id.
func PokemonName(id int) string {
	if name, ok := knownPokemon[id]; ok {
		return name
	}
	return fmt.Sprintf("pokemon-%d", id)
}

// characterSpecies alternates Human (odd ids) and Alien (even ids).
func characterSpecies(id int) string {
	if id%2 == 1 {
		return "Human"
	}
	return "Alien"
}

func (m *MockUpstream) character(id int) map[string]any {
	return map[string]any{
		"id":       id,
		"name":     CharacterName(id),
		"status":   characterStatuses[(id-1)%len(characterStatuses)],
		"species":  characterSpecies(id),
		"type":     "",
		"gender":   characterGenders[(id-1)%len(characterGenders)],
		"origin":   map[string]string{"name": "Earth (C-137)", "url": m.URL() + "/api/location/1"},
		"location": map[string]string{"name": "Citadel of Ricks", "url": m.URL() + "/api/location/3"},
		"image":    fmt.Sprintf("%s/api/character/avatar/%d.jpeg", m.URL(), id),
		"episode":  []string{m.URL() + "/api/episode/1"},
		"url":      fmt.Sprintf("%s/api/character/%d", m.URL(), id),
		"created":  "2017-11-04T18:48:46.250Z",
	}
}

// ServeCharacters registers a character catalog of total entries under /api,
// pageSize per page. The list endpoint supports the name, status, gender and
// species filters and answers 404 when nothing matches.
func (m *MockUpstream) ServeCharacters(total, pageSize int) {
	pages := (total + pageSize - 1) / pageSize

	m.SetHandler("/api/character", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("name") != "" || q.Get("status") != "" || q.Get("gender") != "" || q.Get("species") != "" {
			m.serveCharacterSearch(w, r, total)
			return
		}

		page := 1
		if p := q.Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 || n > pages {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "There is nothing here"})
				return
			}
			page = n
		}

		var results []map[string]any
		for id := (page-1)*pageSize + 1; id <= min(page*pageSize, total); id++ {
			results = append(results, m.character(id))
		}

		var next, prev any
		if page < pages {
			next = fmt.Sprintf("%s/api/character?page=%d", m.URL(), page+1)
		}
		if page > 1 {
			prev = fmt.Sprintf("%s/api/character?page=%d", m.URL(), page-1)
		}

		w.Header().Set("ETag", fmt.Sprintf(`"characters-%d"`, page))
		writeJSON(w, http.StatusOK, map[string]any{
			"info":    map[string]any{"count": total, "pages": pages, "next": next, "prev": prev},
			"results": results,
		})
	})

	m.SetPrefixHandler("/api/character/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/character/"))
		if err != nil || id < 1 || id > total {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Character not found"})
			return
		}
		w.Header().Set("ETag", fmt.Sprintf(`"character-%d"`, id))
		writeJSON(w, http.StatusOK, m.character(id))
	})
}

func (m *MockUpstream) serveCharacterSearch(w http.ResponseWriter, r *http.Request, total int) {
	q := r.URL.Query()
	matches := func(c map[string]any, key string, substring bool) bool {
		want := q.Get(key)
		if want == "" {
			return true
		}
		got := strings.ToLower(c[key].(string))
		if substring {
			return strings.Contains(got, strings.ToLower(want))
		}
		return got == strings.ToLower(want)
	}

	var results []map[string]any
	for id := 1; id <= total && len(results) < 20; id++ {
		c := m.character(id)
		if matches(c, "name", true) && matches(c, "status", false) &&
			matches(c, "gender", false) && matches(c, "species", true) {
			results = append(results, c)
		}
	}

	if len(results) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "There is nothing here"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"info":    map[string]any{"count": len(results), "pages": 1, "next": nil, "prev": nil},
		"results": results,
	})
}

// ServePokemon registers a Pokédex of total entries under /api/v2 with
// offset/limit paging and detail lookup by id or name.
func (m *MockUpstream) ServePokemon(total int) {
	m.SetHandler("/api/v2/pokemon", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 20
		}

		var results []map[string]string
		for id := offset + 1; id <= min(offset+limit, total); id++ {
			results = append(results, map[string]string{
				"name": PokemonName(id),
				"url":  fmt.Sprintf("%s/api/v2/pokemon/%d/", m.URL(), id),
			})
		}

		var next, previous any
		if offset+limit < total {
			next = fmt.Sprintf("%s/api/v2/pokemon?offset=%d&limit=%d", m.URL(), offset+limit, limit)
		}
		if offset > 0 {
			previous = fmt.Sprintf("%s/api/v2/pokemon?offset=%d&limit=%d", m.URL(), max(offset-limit, 0), limit)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count":    total,
			"next":     next,
			"previous": previous,
			"results":  results,
		})
	})

	m.SetPrefixHandler("/api/v2/pokemon/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v2/pokemon/"), "/")
		id, err := strconv.Atoi(key)
		if err != nil {
			id = 0
			for i := 1; i <= total; i++ {
				if PokemonName(i) == key {
					id = i
					break
				}
			}
		}
		if id < 1 || id > total {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Not Found"))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":              id,
			"name":            PokemonName(id),
			"height":          7,
			"weight":          69,
			"base_experience": 64,
			"types": []map[string]any{
				{"slot": 1, "type": map[string]string{"name": "grass", "url": m.URL() + "/api/v2/type/12/"}},
			},
			"abilities": []map[string]any{
				{"slot": 1, "is_hidden": false, "ability": map[string]string{"name": "overgrow", "url": m.URL() + "/api/v2/ability/65/"}},
			},
			"stats": []map[string]any{
				{"base_stat": 45, "effort": 0, "stat": map[string]string{"name": "hp", "url": m.URL() + "/api/v2/stat/1/"}},
			},
			"sprites": map[string]any{
				"front_default": fmt.Sprintf("%s/sprites/pokemon/%d.png", m.URL(), id),
			},
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
