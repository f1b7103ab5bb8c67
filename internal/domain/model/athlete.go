// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Category is the closed set of athlete age groups.
type Category string

// Known categories.
const (
	CategoryJunior Category = "Junior"
	CategorySenior Category = "Senior"
	CategoryMaster Category = "Master"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryJunior, CategorySenior, CategoryMaster}

// ParseCategory accepts a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryJunior, CategorySenior, CategoryMaster:
		return true
	}
	return false
}

// Athlete is a roster entry.
type Athlete struct {
	ID       string   `json:"id" msgpack:"id"`
	Name     string   `json:"name" msgpack:"name"`
	Category Category `json:"category" msgpack:"category"`
}

// Validate rejects incomplete athletes.
func (a Athlete) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return fmt.Errorf("%w: missing id", ErrInvalidAthlete)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: missing name", ErrInvalidAthlete)
	case !a.Category.Valid():
		return fmt.Errorf("%w: category %q", ErrInvalidAthlete, a.Category)
	}
	return nil
}
