// Package mongostore provides an edb.Medium backed by a MongoDB collection.
// Every medium entry is one document whose _id is the storage key.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/e-XpertSolutions/go-edb/edb"
)

const pingTimeout = 5 * time.Second

// Medium stores edb envelopes in a MongoDB collection.
type Medium struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ edb.AtomicMedium = (*Medium)(nil)

type document struct {
	ID    string `bson:"_id"`
	Value string `bson:"value"`
}

// Connect connects to the MongoDB deployment at uri and returns a medium
// storing entries in collection collName of database dbName.
func Connect(ctx context.Context, uri, dbName, collName string) (*Medium, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to mongo")
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, errors.Wrap(err, "cannot ping mongo")
	}
	return New(cli, cli.Database(dbName).Collection(collName)), nil
}

// New returns a medium over an existing collection. Close disconnects
// client.
func New(client *mongo.Client, coll *mongo.Collection) *Medium {
	return &Medium{client: client, coll: coll}
}

func (m *Medium) GetItem(ctx context.Context, key string) (string, bool, error) {
	var doc document
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "cannot find %q", key)
	}
	return doc.Value, true, nil
}

func (m *Medium) SetItem(ctx context.Context, key, value string) error {
	now := time.Now()
	_, err := m.coll.UpdateByID(
		ctx,
		key,
		bson.M{
			"$set": bson.M{
				"value":     value,
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{
				"createdAt": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrapf(err, "cannot upsert %q", key)
	}
	return nil
}

func (m *Medium) SetItemIfAbsent(ctx context.Context, key, value string) (bool, error) {
	now := time.Now()
	_, err := m.coll.InsertOne(ctx, bson.M{
		"_id":       key,
		"value":     value,
		"createdAt": now,
		"updatedAt": now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "cannot insert %q", key)
	}
	return true, nil
}

func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return errors.Wrapf(err, "cannot delete %q", key)
	}
	return nil
}

func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	// The collection may hold documents that are not medium entries.
	filter := bson.M{"_id": bson.M{"$type": "string"}}
	cur, err := m.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "cannot list keys")
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "cannot decode key")
		}
		keys = append(keys, doc.ID)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot list keys")
	}
	return keys, nil
}

// Collection returns the underlying collection.
func (m *Medium) Collection() *mongo.Collection {
	return m.coll
}

// Close disconnects the client.
func (m *Medium) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
