// Package rickandmorty fetches characters from the Rick and Morty API.
package rickandmorty

import "time"

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://rickandmortyapi.com/api"

// Upstream names this API in cache keys and metrics.
const Upstream = "rickandmorty"

// User-facing messages.
const (
	NotFoundMessage = "This character does not exist in any known dimension."
	ErrorMessage    = "Something went wrong while loading the characters."
)

// Revalidation windows.
const (
	// ListRevalidate keeps the full catalog effectively static.
	ListRevalidate   = 30 * 24 * time.Hour
	DetailRevalidate = 10 * 24 * time.Hour
)

// Character is one entry of the character catalog.
type Character struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Species  string    `json:"species"`
	Type     string    `json:"type"`
	Gender   string    `json:"gender"`
	Origin   Place     `json:"origin"`
	Location Place     `json:"location"`
	Image    string    `json:"image"`
	Episode  []string  `json:"episode"`
	URL      string    `json:"url"`
	Created  time.Time `json:"created"`
}

// Place references an origin or last known location.
type Place struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// info is the pagination block of a list response. Next is null on the last page.
type info struct {
	Count int    `json:"count"`
	Pages int    `json:"pages"`
	Next  string `json:"next"`
	Prev  string `json:"prev"`
}

type characterPage struct {
	Info    info        `json:"info"`
	Results []Character `json:"results"`
}
