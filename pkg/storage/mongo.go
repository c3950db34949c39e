package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

const defaultMongoCollection = "itineraries"

// MongoConfig configures MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one document per itinerary, keyed by its identifier.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	identity
}

func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to reach MongoDB: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "metropolis"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultMongoCollection
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		identity:   defaultIdentity(),
	}, nil
}

func (m *MongoStore) Create(ctx context.Context, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	doc := m.create(entries, req)
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*itinerary.Document, error) {
	var doc itinerary.Document
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, itinerary.ErrUnknownDocument
	}
	if err != nil {
		return nil, err
	}
	if doc.Entries == nil {
		doc.Entries = []itinerary.Entry{}
	}
	return &doc, nil
}

// Replace removes the old document and inserts its successor. The removal
// is the claim on the old identifier: of two concurrent replaces only one
// finds the document. If the insert fails the old document is restored.
func (m *MongoStore) Replace(ctx context.Context, oldID string, entries []itinerary.Entry, req itinerary.Request) (*itinerary.Document, error) {
	var old itinerary.Document
	err := m.collection.FindOneAndDelete(ctx, bson.M{"_id": oldID}).Decode(&old)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, itinerary.ErrUnknownDocument
	}
	if err != nil {
		return nil, err
	}

	doc := m.replacement(&old, entries, req)
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if _, restoreErr := m.collection.InsertOne(ctx, &old); restoreErr != nil {
			return nil, fmt.Errorf("replace %s: %w (restore failed: %v)", oldID, err, restoreErr)
		}
		return nil, err
	}
	return doc, nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
