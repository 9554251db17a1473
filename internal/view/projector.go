// Package view filters and orders lead snapshots for display. Nothing here
// touches the store; every function works on a copy of its input.
package view

import (
	"fmt"
	"sort"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// All matches every status or category.
const All = "all"

// Direction is a sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

func (d Direction) flip() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

type fieldKey func(domain.Lead) string

func staffText(l domain.Lead) string {
	if l.ContactedBy == nil {
		return ""
	}
	return string(*l.ContactedBy)
}

var textFields = map[string]fieldKey{
	"name":                   func(l domain.Lead) string { return l.Name },
	"companyName":            func(l domain.Lead) string { return l.CompanyName },
	"email":                  func(l domain.Lead) string { return l.Email },
	"phoneNumber":            func(l domain.Lead) string { return l.PhoneNumber },
	"website":                func(l domain.Lead) string { return l.Website },
	"address":                func(l domain.Lead) string { return l.Address },
	"status":                 func(l domain.Lead) string { return string(l.Status) },
	"category":               func(l domain.Lead) string { return l.Category },
	"contactedBy":            staffText,
	"additionalRequirements": func(l domain.Lead) string { return l.AdditionalRequirements },
}

// SortableFields lists the field names accepted by Sort.
func SortableFields() []string {
	fields := make([]string, 0, len(textFields)+2)
	for name := range textFields {
		fields = append(fields, name)
	}
	fields = append(fields, "createdAt", "updatedAt")
	sort.Strings(fields)
	return fields
}

// Filter keeps leads matching both selectors, in their original order.
func Filter(leads []domain.Lead, status, category string) []domain.Lead {
	out := make([]domain.Lead, 0, len(leads))
	for _, lead := range leads {
		if status != All && string(lead.Status) != status {
			continue
		}
		if category != All && lead.Category != category {
			continue
		}
		out = append(out, lead)
	}
	return out
}

// Categories returns "all" followed by the distinct non-empty categories
// present in leads, sorted.
func Categories(leads []domain.Lead) []string {
	seen := map[string]struct{}{}
	distinct := []string{}
	for _, lead := range leads {
		if lead.Category == "" {
			continue
		}
		if _, ok := seen[lead.Category]; ok {
			continue
		}
		seen[lead.Category] = struct{}{}
		distinct = append(distinct, lead.Category)
	}
	sort.Strings(distinct)
	return append([]string{All}, distinct...)
}

// Sort returns a stably ordered copy of leads.
func Sort(leads []domain.Lead, field string, dir Direction) ([]domain.Lead, error) {
	less, err := comparator(field)
	if err != nil {
		return nil, err
	}
	out := append([]domain.Lead(nil), leads...)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

func comparator(field string) (func(a, b domain.Lead) bool, error) {
	switch field {
	case "createdAt":
		return func(a, b domain.Lead) bool { return a.CreatedAt.Before(b.CreatedAt) }, nil
	case "updatedAt":
		return func(a, b domain.Lead) bool { return a.UpdatedAt.Before(b.UpdatedAt) }, nil
	}
	key, ok := textFields[field]
	if !ok {
		return nil, fmt.Errorf("unknown sort field %q", field)
	}
	return func(a, b domain.Lead) bool { return key(a) < key(b) }, nil
}

// SortState tracks the active sort column.
type SortState struct {
	Field     string
	Direction Direction
}

// DefaultSortState shows the newest leads first.
func DefaultSortState() SortState {
	return SortState{Field: "createdAt", Direction: Descending}
}

// Toggle flips the direction for the current field and resets to ascending
// for a new one.
func (s SortState) Toggle(field string) SortState {
	if field == s.Field {
		return SortState{Field: field, Direction: s.Direction.flip()}
	}
	return SortState{Field: field, Direction: Ascending}
}

// Query combines the filter selectors with a sort state.
type Query struct {
	Status   string
	Category string
	Sort     SortState
}

// DefaultQuery selects everything, newest first.
func DefaultQuery() Query {
	return Query{Status: All, Category: All, Sort: DefaultSortState()}
}

// Project filters then sorts. Empty selectors mean "all".
func Project(leads []domain.Lead, q Query) ([]domain.Lead, error) {
	status, category := q.Status, q.Category
	if status == "" {
		status = All
	}
	if category == "" {
		category = All
	}
	state := q.Sort
	if state.Field == "" {
		state = DefaultSortState()
	}
	return Sort(Filter(leads, status, category), state.Field, state.Direction)
}
