package repository

import (
	"context"
	"errors"

	"library-api/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// AuthorRepository exposes persistence operations for Author records.
type AuthorRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, author *domain.Author) (string, error)
	Update(ctx context.Context, author *domain.Author) error
	GetByName(ctx context.Context, name string) (*domain.Author, error)
	GetByID(ctx context.Context, id string) (*domain.Author, error)
	List(ctx context.Context) ([]domain.Author, error)
	Count(ctx context.Context) (int, error)
}

// BookRepository manages books and their ordered genre lists.
type BookRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, book *domain.Book) (string, error)
	List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	Count(ctx context.Context) (int, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
}
