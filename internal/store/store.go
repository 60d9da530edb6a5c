// Package store holds the document collections and the dedupe gate that guards inserts.
package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/store/mongo"
	"example.com/healthsync/internal/store/postgres"
)

// Collection is a named set of documents supporting single-field equality lookups.
type Collection interface {
	Name() string
	Exists(ctx context.Context, key domain.NaturalKey) (bool, error)
	Insert(ctx context.Context, doc domain.Document) error
}

// Database hands out collections and owns the underlying connection.
type Database interface {
	Collection(name string) Collection
	Close(ctx context.Context) error
}

// Open connects to the database named by uri. The scheme selects the backend:
// mongodb and mongodb+srv use MongoDB, postgres and postgresql use PostgreSQL,
// memory keeps everything in-process.
func Open(ctx context.Context, uri, database string) (Database, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse database uri: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "mongodb", "mongodb+srv":
		db, err := mongo.Open(ctx, uri, database)
		if err != nil {
			return nil, err
		}
		return mongoDatabase{db}, nil
	case "postgres", "postgresql":
		db, err := postgres.Open(ctx, uri)
		if err != nil {
			return nil, err
		}
		return postgresDatabase{db}, nil
	case "memory":
		return NewMemoryDatabase(), nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", parsed.Scheme)
	}
}

type mongoDatabase struct{ db *mongo.Database }

func (m mongoDatabase) Collection(name string) Collection {
	return m.db.Collection(name)
}

func (m mongoDatabase) Close(ctx context.Context) error {
	return m.db.Close(ctx)
}

type postgresDatabase struct{ db *postgres.Database }

func (p postgresDatabase) Collection(name string) Collection {
	return p.db.Collection(name)
}

func (p postgresDatabase) Close(context.Context) error {
	p.db.Close()
	return nil
}
