package service

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"library-api/internal/domain"
	"library-api/internal/repository"
)

// BookPublisher receives every successfully added book.
type BookPublisher interface {
	Publish(book domain.Book)
}

// AddBookInput carries the arguments of the add book mutation.
type AddBookInput struct {
	Title     string
	Published int32
	Author    string
	Genres    []string
}

// CatalogService coordinates author and book operations.
type CatalogService interface {
	AddBook(ctx context.Context, input AddBookInput) (*domain.Book, error)
	EditAuthor(ctx context.Context, name string, born int32) (*domain.Author, error)
	ListBooks(ctx context.Context, authorName, genre *string) ([]domain.Book, error)
	ListAuthors(ctx context.Context) ([]domain.Author, error)
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	CountBooks(ctx context.Context) (int, error)
	CountAuthors(ctx context.Context) (int, error)
	CountBooksByAuthor(ctx context.Context, authorID string) (int, error)
}

type catalogService struct {
	authors   repository.AuthorRepository
	books     repository.BookRepository
	publisher BookPublisher
}

// NewCatalogService builds the service; publisher may be nil.
func NewCatalogService(authors repository.AuthorRepository, books repository.BookRepository, publisher BookPublisher) CatalogService {
	return &catalogService{
		authors:   authors,
		books:     books,
		publisher: publisher,
	}
}

// AddBook creates the author on first mention, then the book. A book write
// failure leaves a freshly created author in place.
func (s *catalogService) AddBook(ctx context.Context, input AddBookInput) (*domain.Book, error) {
	author, err := s.ensureAuthor(ctx, input.Author)
	if err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:     input.Title,
		Published: input.Published,
		Genres:    append([]string{}, input.Genres...),
		AuthorID:  author.ID,
	}
	if err := validateBook(book); err != nil {
		return nil, inputError("Saving book failed", input.Title, err)
	}
	if _, err := s.books.Create(ctx, book); err != nil {
		return nil, inputError("Saving book failed", input.Title, err)
	}

	if s.publisher != nil {
		s.publisher.Publish(*book)
	}
	return book, nil
}

// ensureAuthor looks the author up by name and creates it when missing.
// A concurrent insert of the same name surfaces as a conflict and is
// resolved by reading the winner's record.
func (s *catalogService) ensureAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.authors.GetByName(ctx, name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	author = &domain.Author{Name: name}
	if err := validateAuthor(author); err != nil {
		return nil, inputError("Saving author failed", name, err)
	}
	if _, err := s.authors.Create(ctx, author); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			existing, getErr := s.authors.GetByName(ctx, name)
			if getErr == nil {
				return existing, nil
			}
		}
		return nil, inputError("Saving author failed", name, err)
	}
	return author, nil
}

// EditAuthor sets the birth year; a missing author yields nil, nil.
func (s *catalogService) EditAuthor(ctx context.Context, name string, born int32) (*domain.Author, error) {
	author, err := s.authors.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	author.Born = &born
	if err := s.authors.Update(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

// ListBooks filters by author name when given, otherwise by genre.
// An unknown author name yields an empty list.
func (s *catalogService) ListBooks(ctx context.Context, authorName, genre *string) ([]domain.Book, error) {
	var filter domain.BookFilter
	switch {
	case authorName != nil:
		author, err := s.authors.GetByName(ctx, *authorName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return []domain.Book{}, nil
			}
			return nil, err
		}
		filter.AuthorID = &author.ID
	case genre != nil:
		filter.Genre = genre
	}

	books, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *catalogService) ListAuthors(ctx context.Context) ([]domain.Author, error) {
	return s.authors.List(ctx)
}

func (s *catalogService) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	return s.authors.GetByID(ctx, id)
}

func (s *catalogService) CountBooks(ctx context.Context) (int, error) {
	return s.books.Count(ctx)
}

func (s *catalogService) CountAuthors(ctx context.Context) (int, error) {
	return s.authors.Count(ctx)
}

func (s *catalogService) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	return s.books.CountByAuthor(ctx, authorID)
}

func validateAuthor(author *domain.Author) error {
	return validation.ValidateStruct(author,
		validation.Field(&author.Name, validation.Required),
	)
}

func validateBook(book *domain.Book) error {
	return validation.ValidateStruct(book,
		validation.Field(&book.Title, validation.Required),
		validation.Field(&book.AuthorID, validation.Required),
	)
}
