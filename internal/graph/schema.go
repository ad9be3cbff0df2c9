package graph

import (
	"context"

	"github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"
)

// Schema is the GraphQL schema served at /graphql.
const Schema = `
schema {
	query: Query
	mutation: Mutation
	subscription: Subscription
}

type Book {
	title: String!
	published: Int!
	author: Author!
	id: ID!
	genres: [String!]
}

type Author {
	name: String!
	id: ID!
	born: Int
	# bookCount is counted on every request.
	bookCount: Int
}

type User {
	username: String!
	favoriteGenre: String!
	id: ID!
}

type Token {
	value: String!
}

type Query {
	bookCount: Int!
	authorCount: Int!
	# allBooks filters by author when given, otherwise by genre.
	allBooks(author: String, genre: String): [Book!]
	allAuthors: [Author!]!
	me: User
}

type Mutation {
	addBook(
		title: String!
		published: Int!
		author: String!
		genres: [String!]
	): Book

	editAuthor(
		name: String!
		setBornTo: Int!
	): Author

	createUser(
		username: String!
		favoriteGenre: String!
	): User

	login(
		username: String!
		password: String!
	): Token
}

type Subscription {
	bookAdded: Book!
}
`

// Options tunes schema execution.
type Options struct {
	MaxDepth int
	Logger   *logrus.Logger
}

// NewSchema parses Schema against the root resolver.
func NewSchema(resolver *Resolver, opts Options) (*graphql.Schema, error) {
	schemaOpts := []graphql.SchemaOpt{}
	if opts.MaxDepth > 0 {
		schemaOpts = append(schemaOpts, graphql.MaxDepth(opts.MaxDepth))
	}
	if opts.Logger != nil {
		schemaOpts = append(schemaOpts, graphql.Logger(panicLogger{logger: opts.Logger}))
	}
	return graphql.ParseSchema(Schema, resolver, schemaOpts...)
}

type panicLogger struct {
	logger *logrus.Logger
}

func (l panicLogger) LogPanic(_ context.Context, value interface{}) {
	l.logger.WithField("panic", value).Error("graphql resolver panic")
}
