// Package postgres stores provider documents as JSONB rows, one table per collection.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/domain"
)

//go:embed schema.sql
var schema string

// Database wraps a pgx pool.
type Database struct {
	pool *pgxpool.Pool
}

// Open connects and makes sure the collection tables exist.
func Open(ctx context.Context, url string) (*Database, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", errors.Join(domain.ErrStorage, err))
	}

	db := NewDatabase(pool)
	if err := db.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// NewDatabase constructs a Database over an existing pool.
func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{pool: pool}
}

// EnsureSchema creates the collection tables if they are missing.
func (d *Database) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", errors.Join(domain.ErrStorage, err))
	}
	return nil
}

// Collection returns the table-backed collection called name.
func (d *Database) Collection(name string) *Collection {
	return &Collection{pool: d.pool, name: name}
}

// Close releases the pool.
func (d *Database) Close() {
	d.pool.Close()
}

// Collection is one table of JSONB documents. natural_key is indexed but not unique.
type Collection struct {
	pool *pgxpool.Pool
	name string
}

// Name returns the table name.
func (c *Collection) Name() string {
	return c.name
}

// Exists reports whether a row with the key's field equal to its value is stored.
func (c *Collection) Exists(ctx context.Context, key domain.NaturalKey) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE natural_key = $1 AND document ->> $2::text = $1)`,
		pgx.Identifier{c.name}.Sanitize())

	var exists bool
	if err := c.pool.QueryRow(ctx, query, keyText(key), key.Field).Scan(&exists); err != nil {
		return false, errors.Join(domain.ErrStorage, err)
	}
	return exists, nil
}

// Insert stores the document payload verbatim.
func (c *Collection) Insert(ctx context.Context, doc domain.Document) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (natural_key, document) VALUES ($1, $2)`,
		pgx.Identifier{c.name}.Sanitize())

	if _, err := c.pool.Exec(ctx, stmt, keyText(doc.Key), []byte(doc.Payload)); err != nil {
		return errors.Join(domain.ErrStorage, err)
	}
	return nil
}

func keyText(key domain.NaturalKey) string {
	return fmt.Sprint(key.Value)
}
