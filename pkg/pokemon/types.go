// Package pokemon fetches the Pokédex from PokéAPI.
package pokemon

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// Upstream names this API in cache keys and metrics.
const Upstream = "pokemon"

// PokedexSize caps the catalog at the first generation.
const PokedexSize = 151

// User-facing messages.
const (
	NotFoundMessage = "The Pokémon you are looking for does not exist in our Pokédex."
	ErrorMessage    = "Something went wrong while loading the Pokémon information."
)

// Revalidation windows.
const (
	ListRevalidate   = 24 * time.Hour
	DetailRevalidate = 24 * time.Hour
)

// Entry is one row of the Pokédex list.
type Entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// idFromURL extracts the trailing numeric segment of a resource URL such as
// https://pokeapi.co/api/v2/pokemon/25/. It returns 0 when there is none.
func idFromURL(u string) int {
	id, err := strconv.Atoi(path.Base(strings.TrimRight(u, "/")))
	if err != nil {
		return 0
	}
	return id
}

// Pokemon is the detail view of one Pokémon.
type Pokemon struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Height         int       `json:"height"`
	Weight         int       `json:"weight"`
	BaseExperience int       `json:"base_experience"`
	Types          []Slot    `json:"types"`
	Abilities      []Ability `json:"abilities"`
	Stats          []Stat    `json:"stats"`
	Sprites        Sprites   `json:"sprites"`
}

// Resource is a named link to another PokéAPI resource.
type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Slot is one of a Pokémon's types.
type Slot struct {
	Slot int      `json:"slot"`
	Type Resource `json:"type"`
}

// Ability is one of a Pokémon's abilities.
type Ability struct {
	Slot     int      `json:"slot"`
	IsHidden bool     `json:"is_hidden"`
	Ability  Resource `json:"ability"`
}

// Stat is one base stat.
type Stat struct {
	BaseStat int      `json:"base_stat"`
	Effort   int      `json:"effort"`
	Stat     Resource `json:"stat"`
}

// Sprites holds image URLs.
type Sprites struct {
	FrontDefault string `json:"front_default"`
}

// TypeNames returns the type names in slot order.
func (p *Pokemon) TypeNames() []string {
	names := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		names = append(names, t.Type.Name)
	}
	return names
}

type listPage struct {
	Count    int        `json:"count"`
	Next     string     `json:"next"`
	Previous string     `json:"previous"`
	Results  []Resource `json:"results"`
}
