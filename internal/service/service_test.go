package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"library-api/internal/domain"
	"library-api/internal/repository"
	"library-api/internal/repository/sqlite"
)

type testRepos struct {
	authors repository.AuthorRepository
	books   repository.BookRepository
	users   repository.UserRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	r := testRepos{
		authors: sqlite.NewAuthorRepository(db),
		books:   sqlite.NewBookRepository(db),
		users:   sqlite.NewUserRepository(db),
	}
	require.NoError(t, r.authors.Init(ctx))
	require.NoError(t, r.books.Init(ctx))
	require.NoError(t, r.users.Init(ctx))
	return r
}

type recordingPublisher struct {
	mu    sync.Mutex
	books []domain.Book
}

func (p *recordingPublisher) Publish(book domain.Book) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.books = append(p.books, book)
}

func (p *recordingPublisher) published() []domain.Book {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Book(nil), p.books...)
}
