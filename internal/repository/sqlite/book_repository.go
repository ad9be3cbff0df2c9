package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"library-api/internal/domain"
	"library-api/internal/repository"
)

const createBooksTable = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	published INTEGER NOT NULL,
	author_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(author_id) REFERENCES authors(id)
);
CREATE INDEX IF NOT EXISTS idx_books_author_id ON books(author_id);
CREATE TABLE IF NOT EXISTS book_genres (
	book_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	genre TEXT NOT NULL,
	PRIMARY KEY(book_id, position),
	FOREIGN KEY(book_id) REFERENCES books(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_book_genres_genre ON book_genres(genre);
`

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) repository.BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBooksTable); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

// Create stores the book and its genres in one transaction.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (string, error) {
	now := time.Now().UTC()
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	book.CreatedAt = now
	book.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `
INSERT INTO books (id, title, published, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Published,
		book.AuthorID,
		book.CreatedAt,
		book.UpdatedAt,
	); err != nil {
		return "", fmt.Errorf("insert book: %w", err)
	}

	for i, genre := range book.Genres {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO book_genres (book_id, position, genre)
VALUES (?, ?, ?)`,
			book.ID,
			i,
			genre,
		); err != nil {
			return "", fmt.Errorf("insert genre: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return book.ID, nil
}

func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case filter.AuthorID != nil:
		where = append(where, "b.author_id = ?")
		args = append(args, *filter.AuthorID)
	case filter.Genre != nil:
		where = append(where, "EXISTS (SELECT 1 FROM book_genres g WHERE g.book_id = b.id AND g.genre = ?)")
		args = append(args, *filter.Genre)
	}

	query := `
SELECT b.id, b.title, b.published, b.author_id, b.created_at, b.updated_at
FROM books b`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY b.rowid ASC"

	books, err := r.queryBooks(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	for i := range books {
		genres, err := r.listGenres(ctx, books[i].ID)
		if err != nil {
			return nil, err
		}
		books[i].Genres = genres
	}
	return books, nil
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func (r *BookRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE author_id = ?`, authorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books by author: %w", err)
	}
	return n, nil
}

// queryBooks drains the result set before returning so the single
// connection is free for the genre lookups that follow.
func (r *BookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Published,
			&book.AuthorID,
			&book.CreatedAt,
			&book.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func (r *BookRepository) listGenres(ctx context.Context, bookID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT genre
FROM book_genres
WHERE book_id=?
ORDER BY position ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book genres: %w", err)
	}
	defer rows.Close()

	genres := []string{}
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, genre)
	}
	return genres, rows.Err()
}
