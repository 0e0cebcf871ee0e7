package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "files"

// MongoStore keeps FileInfo records in the "files" collection.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore binds to db and ensures the blob handle index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	collection := db.Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "blob_handle", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return newMongoStore(collection), nil
}

func newMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection, now: time.Now}
}

// Persist inserts a new record with a fresh id.
func (ms *MongoStore) Persist(ctx context.Context, file NewFile) (*FileInfo, error) {
	info := &FileInfo{
		ID:          uuid.New().String(),
		BlobHandle:  file.BlobHandle,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		Checksum:    file.Checksum,
		// BSON dates have millisecond precision.
		CreatedAt: ms.now().UTC().Truncate(time.Millisecond),
	}

	if _, err := ms.collection.InsertOne(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Find loads the record with the given id.
func (ms *MongoStore) Find(ctx context.Context, id string) (*FileInfo, error) {
	var info FileInfo
	err := ms.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&info)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (ms *MongoStore) Delete(ctx context.Context, info *FileInfo) error {
	_, err := ms.collection.DeleteOne(ctx, bson.M{"_id": info.ID})
	return err
}
