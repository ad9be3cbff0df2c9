package domain

import "time"

// Author is identified by name in practice; ID is the key stored on books.
type Author struct {
	ID        string
	Name      string
	Born      *int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Book references exactly one Author.
type Book struct {
	ID        string
	Title     string
	Published int32
	Genres    []string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookFilter narrows book listings. Author takes precedence over Genre.
type BookFilter struct {
	AuthorID *string
	Genre    *string
}
