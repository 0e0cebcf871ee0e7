package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const collectionName = "accounts"

// MongoStore keeps accounts in the "accounts" collection. Credentials are
// stored as bcrypt hashes.
type MongoStore struct {
	collection *mongo.Collection
	cost       int
	now        func() time.Time
}

// NewMongoStore binds to db and ensures the email index exists. The index is
// not unique: duplicate emails are accepted.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	collection := db.Collection(collectionName)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_1"),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}

	return newMongoStore(collection, bcrypt.DefaultCost), nil
}

func newMongoStore(collection *mongo.Collection, cost int) *MongoStore {
	return &MongoStore{collection: collection, cost: cost, now: time.Now}
}

// Save inserts a copy of account with a fresh id and a hashed credential.
// The caller's value is not modified.
func (ms *MongoStore) Save(ctx context.Context, account *Account) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), ms.cost)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	stored := *account
	stored.ID = uuid.New().String()
	stored.Password = string(hash)
	stored.CreatedAt = ms.now().UTC().Truncate(time.Millisecond)

	if _, err := ms.collection.InsertOne(ctx, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Delete removes the account. Deleting a missing account is not an error.
func (ms *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := ms.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
