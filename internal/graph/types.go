package graph

import (
	"context"
	"fmt"

	"github.com/graph-gophers/graphql-go"

	"library-api/internal/domain"
)

type BookResolver struct {
	book domain.Book
	root *Resolver
}

func (b *BookResolver) ID() graphql.ID {
	return graphql.ID(b.book.ID)
}

func (b *BookResolver) Title() string {
	return b.book.Title
}

func (b *BookResolver) Published() int32 {
	return b.book.Published
}

func (b *BookResolver) Genres() *[]string {
	genres := append([]string{}, b.book.Genres...)
	return &genres
}

// Author is resolved by id on every access.
func (b *BookResolver) Author(ctx context.Context) (*AuthorResolver, error) {
	author, err := b.root.catalog.GetAuthor(ctx, b.book.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("resolve author of book %s: %w", b.book.ID, err)
	}
	return b.root.author(*author), nil
}

type AuthorResolver struct {
	author domain.Author
	root   *Resolver
}

func (a *AuthorResolver) ID() graphql.ID {
	return graphql.ID(a.author.ID)
}

func (a *AuthorResolver) Name() string {
	return a.author.Name
}

func (a *AuthorResolver) Born() *int32 {
	return a.author.Born
}

// BookCount runs one count query per author.
func (a *AuthorResolver) BookCount(ctx context.Context) (*int32, error) {
	n, err := a.root.catalog.CountBooksByAuthor(ctx, a.author.ID)
	if err != nil {
		return nil, err
	}
	count := int32(n)
	return &count, nil
}

type UserResolver struct {
	user domain.User
}

func (u *UserResolver) ID() graphql.ID {
	return graphql.ID(u.user.ID)
}

func (u *UserResolver) Username() string {
	return u.user.Username
}

func (u *UserResolver) FavoriteGenre() string {
	return u.user.FavoriteGenre
}

type TokenResolver struct {
	value string
}

func (t *TokenResolver) Value() string {
	return t.value
}
