package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-api/internal/auth"
	"library-api/internal/domain"
	"library-api/internal/pubsub"
	"library-api/internal/repository/sqlite"
	"library-api/internal/service"
)

type fixture struct {
	schema *graphql.Schema
	users  service.UserService
	broker *pubsub.Broker[domain.Book]
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	authors := sqlite.NewAuthorRepository(db)
	books := sqlite.NewBookRepository(db)
	users := sqlite.NewUserRepository(db)
	require.NoError(t, authors.Init(ctx))
	require.NoError(t, books.Init(ctx))
	require.NoError(t, users.Init(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hash, err := service.HashLoginPassword("secret", bcrypt.MinCost)
	require.NoError(t, err)

	broker := pubsub.NewBroker[domain.Book]("book_added", 0, logger)
	t.Cleanup(broker.Close)

	catalog := service.NewCatalogService(authors, books, broker)
	userService := service.NewUserService(users, auth.NewTokenManager("test-secret", 0), hash, service.LoginPolicyLiteral)

	schema, err := NewSchema(NewResolver(catalog, userService, broker, logger), Options{MaxDepth: 10, Logger: logger})
	require.NoError(t, err)
	return fixture{schema: schema, users: userService, broker: broker}
}

func (f fixture) exec(t *testing.T, ctx context.Context, query string, vars map[string]interface{}) *graphql.Response {
	t.Helper()
	return f.schema.Exec(ctx, query, "", vars)
}

func decode(t *testing.T, resp *graphql.Response, into interface{}) {
	t.Helper()
	require.Empty(t, resp.Errors)
	require.NoError(t, json.Unmarshal(resp.Data, into))
}

const addBook = `mutation($title: String!, $published: Int!, $author: String!, $genres: [String!]) {
	addBook(title: $title, published: $published, author: $author, genres: $genres) {
		id title published genres author { name born bookCount }
	}
}`

func TestAddBookAndQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var added struct {
		AddBook struct {
			ID        string
			Title     string
			Published int32
			Genres    []string
			Author    struct {
				Name      string
				Born      *int32
				BookCount int32
			}
		}
	}
	decode(t, f.exec(t, ctx, addBook, map[string]interface{}{
		"title": "Pimeyden tango", "published": 2010, "author": "Reijo Mäki", "genres": []interface{}{"crime", "thriller"},
	}), &added)
	assert.NotEmpty(t, added.AddBook.ID)
	assert.Equal(t, []string{"crime", "thriller"}, added.AddBook.Genres)
	assert.Equal(t, "Reijo Mäki", added.AddBook.Author.Name)
	assert.Nil(t, added.AddBook.Author.Born)
	assert.Equal(t, int32(1), added.AddBook.Author.BookCount)

	// genres omitted
	resp := f.exec(t, ctx, addBook, map[string]interface{}{
		"title": "Kolmijalkainen", "published": 2012, "author": "Reijo Mäki",
	})
	require.Empty(t, resp.Errors)

	var counts struct {
		BookCount   int32
		AuthorCount int32
		AllAuthors  []struct {
			Name      string
			BookCount int32
		}
	}
	decode(t, f.exec(t, ctx, `{ bookCount authorCount allAuthors { name bookCount } }`, nil), &counts)
	assert.Equal(t, int32(2), counts.BookCount)
	assert.Equal(t, int32(1), counts.AuthorCount)
	require.Len(t, counts.AllAuthors, 1)
	assert.Equal(t, int32(2), counts.AllAuthors[0].BookCount)

	var filtered struct {
		ByGenre []struct {
			Title  string
			Genres []string
		}
		Missing []struct{ Title string }
	}
	decode(t, f.exec(t, ctx, `{
		byGenre: allBooks(genre: "crime") { title genres }
		missing: allBooks(author: "Nobody") { title }
	}`, nil), &filtered)
	require.Len(t, filtered.ByGenre, 1)
	assert.Equal(t, "Pimeyden tango", filtered.ByGenre[0].Title)
	assert.NotNil(t, filtered.Missing)
	assert.Empty(t, filtered.Missing)
}

func TestEditAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Empty(t, f.exec(t, ctx, addBook, map[string]interface{}{
		"title": "The Idiot", "published": 1869, "author": "Fyodor Dostoevsky",
	}).Errors)

	var edited struct {
		EditAuthor *struct {
			Name string
			Born int32
		}
	}
	decode(t, f.exec(t, ctx, `mutation { editAuthor(name: "Fyodor Dostoevsky", setBornTo: 1821) { name born } }`, nil), &edited)
	require.NotNil(t, edited.EditAuthor)
	assert.Equal(t, int32(1821), edited.EditAuthor.Born)

	var missing struct {
		EditAuthor *struct{ Name string }
	}
	decode(t, f.exec(t, ctx, `mutation { editAuthor(name: "Nobody", setBornTo: 1900) { name } }`, nil), &missing)
	assert.Nil(t, missing.EditAuthor)
}

func TestAddBookInputErrorExtensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.exec(t, ctx, addBook, map[string]interface{}{
		"title": "", "published": 2020, "author": "Fresh Author",
	})
	require.Len(t, resp.Errors, 1)
	gqlErr := resp.Errors[0]
	assert.Equal(t, "Saving book failed", gqlErr.Message)
	assert.Equal(t, CodeBadUserInput, gqlErr.Extensions["code"])
	assert.NotContains(t, gqlErr.Extensions, "invalidArgs", "empty title is not reported")
	assert.NotEmpty(t, gqlErr.Extensions["error"])

	var authors struct {
		AllAuthors []struct{ Name string }
	}
	decode(t, f.exec(t, ctx, `{ allAuthors { name } }`, nil), &authors)
	require.Len(t, authors.AllAuthors, 1)
	assert.Equal(t, "Fresh Author", authors.AllAuthors[0].Name)
}

func TestUserMutationsAndMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created struct {
		CreateUser struct {
			ID            string
			Username      string
			FavoriteGenre string
		}
	}
	decode(t, f.exec(t, ctx, `mutation { createUser(username: "alice", favoriteGenre: "fantasy") { id username favoriteGenre } }`, nil), &created)
	assert.Equal(t, "alice", created.CreateUser.Username)

	resp := f.exec(t, ctx, `mutation { createUser(username: "alice", favoriteGenre: "horror") { id } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "User creation failed", resp.Errors[0].Message)
	assert.Equal(t, CodeBadUserInput, resp.Errors[0].Extensions["code"])
	assert.Equal(t, "alice", resp.Errors[0].Extensions["invalidArgs"])

	var login struct {
		Login struct{ Value string }
	}
	decode(t, f.exec(t, ctx, `mutation { login(username: "alice", password: "secret") { value } }`, nil), &login)
	assert.NotEmpty(t, login.Login.Value)

	resp = f.exec(t, ctx, `mutation { login(username: "mallory", password: "nope") { value } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Invalid login", resp.Errors[0].Message)
	assert.Equal(t, CodeBadUserInput, resp.Errors[0].Extensions["code"])

	var anonymous struct {
		Me *struct{ Username string }
	}
	decode(t, f.exec(t, ctx, `{ me { username } }`, nil), &anonymous)
	assert.Nil(t, anonymous.Me)

	user, err := f.users.GetByID(ctx, created.CreateUser.ID)
	require.NoError(t, err)
	var me struct {
		Me *struct {
			Username      string
			FavoriteGenre string
		}
	}
	decode(t, f.exec(t, auth.WithUser(ctx, user), `{ me { username favoriteGenre } }`, nil), &me)
	require.NotNil(t, me.Me)
	assert.Equal(t, "alice", me.Me.Username)
	assert.Equal(t, "fantasy", me.Me.FavoriteGenre)
}

func TestBookAddedSubscription(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := f.schema.Subscribe(ctx, `subscription { bookAdded { title author { name } } }`, "", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.Empty(t, f.exec(t, context.Background(), addBook, map[string]interface{}{
		"title": "Dune", "published": 1965, "author": "Frank Herbert",
	}).Errors)

	select {
	case result := <-results:
		resp, ok := result.(*graphql.Response)
		require.True(t, ok)
		var event struct {
			BookAdded struct {
				Title  string
				Author struct{ Name string }
			}
		}
		decode(t, resp, &event)
		assert.Equal(t, "Dune", event.BookAdded.Title)
		assert.Equal(t, "Frank Herbert", event.BookAdded.Author.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no bookAdded event")
	}

	cancel()
	require.Eventually(t, func() bool { return f.broker.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestResolverErrorMapping(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: users.username")
	err := resolverError(&service.InputError{Message: "User creation failed", InvalidArgs: "alice", Err: cause})

	var gqlErr *Error
	require.ErrorAs(t, err, &gqlErr)
	assert.Equal(t, "User creation failed", gqlErr.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, map[string]interface{}{
		"code":        CodeBadUserInput,
		"invalidArgs": "alice",
		"error":       cause.Error(),
	}, gqlErr.Extensions())

	err = resolverError(auth.ErrInvalidToken)
	require.ErrorAs(t, err, &gqlErr)
	assert.Equal(t, CodeUnauthenticated, gqlErr.Code)
	assert.Equal(t, "Invalid or expired token", gqlErr.Message)

	plain := errors.New("disk full")
	assert.Same(t, plain, resolverError(plain))

	ext := (&Error{Message: "x", Code: CodeBadUserInput}).Extensions()
	assert.Equal(t, map[string]interface{}{"code": CodeBadUserInput}, ext)
}
