package search

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Filter fields, also the query parameter names sent upstream.
const (
	FieldName    = "name"
	FieldStatus  = "status"
	FieldGender  = "gender"
	FieldSpecies = "species"
)

// ErrInvalidFilter is returned by Filter.Validate and SetField.
var ErrInvalidFilter = errors.New("invalid search filter")

var (
	validStatuses = []string{"alive", "dead", "unknown"}
	validGenders  = []string{"female", "male", "genderless", "unknown"}
)

// Filter is the set of optional search criteria. Empty fields are unset.
type Filter struct {
	Name    string `json:"name,omitempty"`
	Status  string `json:"status,omitempty"`
	Gender  string `json:"gender,omitempty"`
	Species string `json:"species,omitempty"`
}

// IsEmpty reports whether every field is unset.
func (f Filter) IsEmpty() bool {
	return f.Name == "" && f.Status == "" && f.Gender == "" && f.Species == ""
}

// Query returns the non-empty fields as query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	for _, kv := range [][2]string{
		{FieldName, f.Name},
		{FieldStatus, f.Status},
		{FieldGender, f.Gender},
		{FieldSpecies, f.Species},
	} {
		if kv[1] != "" {
			q.Set(kv[0], kv[1])
		}
	}
	return q
}

// Validate rejects status and gender values the upstream does not know.
func (f Filter) Validate() error {
	if f.Status != "" && !oneOf(f.Status, validStatuses) {
		return fmt.Errorf("%w: status %q (want one of %s)", ErrInvalidFilter, f.Status, strings.Join(validStatuses, ", "))
	}
	if f.Gender != "" && !oneOf(f.Gender, validGenders) {
		return fmt.Errorf("%w: gender %q (want one of %s)", ErrInvalidFilter, f.Gender, strings.Join(validGenders, ", "))
	}
	return nil
}

// With returns a copy of f with field set to value.
func (f Filter) With(field, value string) (Filter, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(field) {
	case FieldName:
		f.Name = value
	case FieldStatus:
		f.Status = strings.ToLower(value)
	case FieldGender:
		f.Gender = strings.ToLower(value)
	case FieldSpecies:
		f.Species = value
	default:
		return f, fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, field)
	}
	return f, nil
}

// FilterFromQuery reads a Filter from query parameters.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Name:    strings.TrimSpace(q.Get(FieldName)),
		Status:  strings.ToLower(strings.TrimSpace(q.Get(FieldStatus))),
		Gender:  strings.ToLower(strings.TrimSpace(q.Get(FieldGender))),
		Species: strings.TrimSpace(q.Get(FieldSpecies)),
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
