package models

import (
	"errors"
	"unicode/utf8"
)

// Column bounds for Movie.
const (
	MaxTitleLen = 60
	MaxYearLen  = 4
)

// Movie is one watchlist entry. Year is free text.
type Movie struct {
	ID    uint   `gorm:"primaryKey"`
	Title string `gorm:"size:60"`
	Year  string `gorm:"size:4"`
}

// TableName keeps the table name singular.
func (Movie) TableName() string {
	return "movie"
}

var ErrInvalidMovie = errors.New("title must be 1 to 60 characters and year 1 to 4 characters")

// MovieRequest represents the create/edit form. A nil field was not submitted.
type MovieRequest struct {
	Title *string `form:"title"`
	Year  *string `form:"year"`
}

// Complete reports whether both fields were submitted.
func (r MovieRequest) Complete() bool {
	return r.Title != nil && r.Year != nil
}

// Validate enforces the title and year length bounds, counted in characters.
// Missing fields count as empty.
func (r MovieRequest) Validate() error {
	title, year := value(r.Title), value(r.Year)
	if title == "" || year == "" {
		return ErrInvalidMovie
	}
	if utf8.RuneCountInString(title) > MaxTitleLen || utf8.RuneCountInString(year) > MaxYearLen {
		return ErrInvalidMovie
	}
	return nil
}

// Apply copies the request fields onto m.
func (r MovieRequest) Apply(m *Movie) {
	m.Title = value(r.Title)
	m.Year = value(r.Year)
}
