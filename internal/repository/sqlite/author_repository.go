package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"library-api/internal/domain"
	"library-api/internal/repository"
)

const createAuthorsTable = `
CREATE TABLE IF NOT EXISTS authors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	born INTEGER NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type AuthorRepository struct {
	db *sql.DB
}

func NewAuthorRepository(db *sql.DB) repository.AuthorRepository {
	return &AuthorRepository{db: db}
}

func (r *AuthorRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAuthorsTable); err != nil {
		return fmt.Errorf("create authors table: %w", err)
	}
	return nil
}

func (r *AuthorRepository) Create(ctx context.Context, author *domain.Author) (string, error) {
	now := time.Now().UTC()
	if author.ID == "" {
		author.ID = uuid.NewString()
	}
	author.CreatedAt = now
	author.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO authors (id, name, born, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		author.ID,
		author.Name,
		nullInt32(author.Born),
		author.CreatedAt,
		author.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("author %q: %w", author.Name, repository.ErrConflict)
		}
		return "", fmt.Errorf("insert author: %w", err)
	}
	return author.ID, nil
}

func (r *AuthorRepository) Update(ctx context.Context, author *domain.Author) error {
	author.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE authors
SET name=?, born=?, updated_at=?
WHERE id=?`,
		author.Name,
		nullInt32(author.Born),
		author.UpdatedAt,
		author.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("author %q: %w", author.Name, repository.ErrConflict)
		}
		return fmt.Errorf("update author: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("author update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("author %s: %w", author.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *AuthorRepository) GetByName(ctx context.Context, name string) (*domain.Author, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, born, created_at, updated_at
FROM authors
WHERE name = ?`,
		name,
	)
	return scanAuthor(row)
}

func (r *AuthorRepository) GetByID(ctx context.Context, id string) (*domain.Author, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, born, created_at, updated_at
FROM authors
WHERE id = ?`,
		id,
	)
	return scanAuthor(row)
}

func (r *AuthorRepository) List(ctx context.Context) ([]domain.Author, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, born, created_at, updated_at
FROM authors
ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	authors := []domain.Author{}
	for rows.Next() {
		author, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, *author)
	}

	return authors, rows.Err()
}

func (r *AuthorRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM authors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return n, nil
}

func scanAuthor(row scanner) (*domain.Author, error) {
	var (
		author domain.Author
		born   sql.NullInt32
	)
	if err := row.Scan(
		&author.ID,
		&author.Name,
		&born,
		&author.CreatedAt,
		&author.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("author: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan author: %w", err)
	}
	if born.Valid {
		v := born.Int32
		author.Born = &v
	}
	return &author, nil
}

func nullInt32(v *int32) any {
	if v == nil {
		return nil
	}
	return *v
}
