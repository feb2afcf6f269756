package credentials

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

const collectionName = "credentials"

// credentialDocument is the stored shape; the document id is the storage key.
type credentialDocument struct {
	ID         string `bson:"_id"`
	InstanceID string `bson:"instanceId"`
	APIToken   string `bson:"apiToken"`
}

// MongoStore implements Store on top of a MongoDB collection.
type MongoStore struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri string, dbName string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{
		client:   client,
		dbName:   dbName,
		collName: collectionName,
	}, nil
}

// Load fetches the credential document.
func (r *MongoStore) Load(ctx context.Context) (models.Credentials, bool, error) {
	var doc credentialDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": StorageKey}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Credentials{}, false, nil
		}
		return models.Credentials{}, false, fmt.Errorf("failed to load credentials: %w", err)
	}

	return models.Credentials{InstanceID: doc.InstanceID, APIToken: doc.APIToken}, true, nil
}

// Save upserts the credential document as a whole.
func (r *MongoStore) Save(ctx context.Context, creds models.Credentials) error {
	doc := credentialDocument{ID: StorageKey, InstanceID: creds.InstanceID, APIToken: creds.APIToken}

	_, err := r.collection().ReplaceOne(ctx, bson.M{"_id": StorageKey}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoStore) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoStore) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}
