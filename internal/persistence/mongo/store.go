// Package mongo stores dashboard blob entries in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"example.com/learnlog/internal/persistence"
)

// CollectionName is the collection holding one document per entry.
const CollectionName = "dashboard_blobs"

type blobDocument struct {
	Name      string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store is a persistence.BlobStore backed by a MongoDB collection.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewStore constructs a Store using db's dashboard_blobs collection.
func NewStore(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(CollectionName), now: time.Now}
}

// Connect dials uri and verifies the server is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Get implements persistence.BlobStore.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	var doc blobDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Payload), nil
}

// Put implements persistence.BlobStore. Each entry is upserted separately; a
// failure part way leaves earlier entries written.
func (s *Store) Put(ctx context.Context, entries ...persistence.Entry) error {
	now := s.now().UTC()
	for _, entry := range entries {
		doc := blobDocument{Name: entry.Name, Payload: string(entry.Payload), UpdatedAt: now}
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": entry.Name}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert %s: %w", entry.Name, err)
		}
	}
	return nil
}
