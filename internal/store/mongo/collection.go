// Package mongo stores provider documents in MongoDB collections.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/healthsync/internal/domain"
)

// Database wraps a connected client and the database holding the collections.
type Database struct {
	client *driver.Client
	db     *driver.Database
}

// Open connects to uri and selects the named database.
func Open(ctx context.Context, uri, database string) (*Database, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", errors.Join(domain.ErrStorage, err))
	}
	return &Database{client: client, db: client.Database(database)}, nil
}

// Collection returns the named collection.
func (d *Database) Collection(name string) *Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Collection adapts a driver collection.
type Collection struct {
	coll *driver.Collection
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// Exists looks for one document whose key field equals the key value.
func (c *Collection) Exists(ctx context.Context, key domain.NaturalKey) (bool, error) {
	err := c.coll.FindOne(ctx, bson.D{{Key: key.Field, Value: key.Value}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, driver.ErrNoDocuments):
		return false, nil
	default:
		return false, errors.Join(domain.ErrStorage, err)
	}
}

// Insert converts the JSON payload to BSON and inserts it as a new document.
func (c *Collection) Insert(ctx context.Context, doc domain.Document) error {
	record, err := toBSON(doc.Payload)
	if err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, record); err != nil {
		return errors.Join(domain.ErrStorage, err)
	}
	return nil
}

// toBSON decodes relaxed extended JSON, which plain provider JSON is, so numbers keep
// their integer types and activityId lookups match on the stored value.
func toBSON(payload []byte) (bson.D, error) {
	var record bson.D
	if err := bson.UnmarshalExtJSON(payload, false, &record); err != nil {
		return nil, fmt.Errorf("convert payload to bson: %w", errors.Join(domain.ErrDecode, err))
	}
	return record, nil
}
