package graph

import (
	"context"

	"github.com/sirupsen/logrus"

	"library-api/internal/auth"
	"library-api/internal/domain"
	"library-api/internal/service"
)

// BookSubscriber hands out streams of newly added books.
type BookSubscriber interface {
	Subscribe(ctx context.Context) <-chan domain.Book
}

// Resolver is the root resolver for queries, mutations and subscriptions.
type Resolver struct {
	catalog service.CatalogService
	users   service.UserService
	books   BookSubscriber
	logger  *logrus.Logger
}

func NewResolver(catalog service.CatalogService, users service.UserService, books BookSubscriber, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		catalog: catalog,
		users:   users,
		books:   books,
		logger:  logger,
	}
}

func (r *Resolver) BookCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.CountBooks(ctx)
	return int32(n), err
}

func (r *Resolver) AuthorCount(ctx context.Context) (int32, error) {
	n, err := r.catalog.CountAuthors(ctx)
	return int32(n), err
}

func (r *Resolver) AllBooks(ctx context.Context, args struct {
	Author *string
	Genre  *string
}) (*[]*BookResolver, error) {
	books, err := r.catalog.ListBooks(ctx, args.Author, args.Genre)
	if err != nil {
		return nil, resolverError(err)
	}
	resolvers := make([]*BookResolver, len(books))
	for i := range books {
		resolvers[i] = r.book(books[i])
	}
	return &resolvers, nil
}

func (r *Resolver) AllAuthors(ctx context.Context) ([]*AuthorResolver, error) {
	authors, err := r.catalog.ListAuthors(ctx)
	if err != nil {
		return nil, resolverError(err)
	}
	resolvers := make([]*AuthorResolver, len(authors))
	for i := range authors {
		resolvers[i] = r.author(authors[i])
	}
	return resolvers, nil
}

func (r *Resolver) Me(ctx context.Context) *UserResolver {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return nil
	}
	return &UserResolver{user: *user}
}

func (r *Resolver) AddBook(ctx context.Context, args struct {
	Title     string
	Published int32
	Author    string
	Genres    *[]string
}) (*BookResolver, error) {
	input := service.AddBookInput{
		Title:     args.Title,
		Published: args.Published,
		Author:    args.Author,
	}
	if args.Genres != nil {
		input.Genres = *args.Genres
	}

	book, err := r.catalog.AddBook(ctx, input)
	if err != nil {
		return nil, resolverError(err)
	}
	return r.book(*book), nil
}

func (r *Resolver) EditAuthor(ctx context.Context, args struct {
	Name      string
	SetBornTo int32
}) (*AuthorResolver, error) {
	author, err := r.catalog.EditAuthor(ctx, args.Name, args.SetBornTo)
	if err != nil {
		return nil, resolverError(err)
	}
	if author == nil {
		return nil, nil
	}
	return r.author(*author), nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct {
	Username      string
	FavoriteGenre string
}) (*UserResolver, error) {
	user, err := r.users.Create(ctx, args.Username, args.FavoriteGenre)
	if err != nil {
		return nil, resolverError(err)
	}
	return &UserResolver{user: *user}, nil
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Username string
	Password string
}) (*TokenResolver, error) {
	token, err := r.users.Login(ctx, args.Username, args.Password)
	if err != nil {
		return nil, resolverError(err)
	}
	return &TokenResolver{value: token}, nil
}

// BookAdded streams books added after the subscription starts.
func (r *Resolver) BookAdded(ctx context.Context) <-chan *BookResolver {
	out := make(chan *BookResolver)
	if r.books == nil {
		close(out)
		return out
	}

	in := r.books.Subscribe(ctx)
	r.logger.Debug("bookAdded subscription started")
	go func() {
		defer close(out)
		defer r.logger.Debug("bookAdded subscription ended")
		for {
			select {
			case <-ctx.Done():
				return
			case book, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- r.book(book):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Resolver) book(book domain.Book) *BookResolver {
	return &BookResolver{book: book, root: r}
}

func (r *Resolver) author(author domain.Author) *AuthorResolver {
	return &AuthorResolver{author: author, root: r}
}
