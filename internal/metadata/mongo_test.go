package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 123456789, time.UTC)

	mt.Run("persist assigns id and timestamp", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := newMongoStore(mt.Coll)
		store.now = func() time.Time { return fixed }

		info, err := store.Persist(ctx, NewFile{
			BlobHandle:  "blob-1",
			Filename:    "a.png",
			ContentType: "image/png",
			Size:        1024,
			Checksum:    "abc",
		})
		if err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
		if info.ID == "" {
			t.Error("ID not assigned")
		}
		if info.Filename != "a.png" || info.ContentType != "image/png" || info.Size != 1024 {
			t.Errorf("unexpected record: %+v", info)
		}
		if !info.CreatedAt.Equal(fixed.Truncate(time.Millisecond)) {
			t.Errorf("CreatedAt = %v, want %v", info.CreatedAt, fixed.Truncate(time.Millisecond))
		}
	})

	mt.Run("persist error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "duplicate key",
		}))
		store := newMongoStore(mt.Coll)

		if _, err := store.Persist(ctx, NewFile{BlobHandle: "blob-1"}); err == nil {
			t.Error("expected error")
		}
	})

	mt.Run("find existing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "file-1"},
			{Key: "blob_handle", Value: "blob-1"},
			{Key: "filename", Value: "c.jpg"},
			{Key: "content_type", Value: "image/jpeg"},
			{Key: "size", Value: int64(10)},
			{Key: "checksum", Value: "abc"},
			{Key: "created_at", Value: primitive.NewDateTimeFromTime(fixed)},
		}))
		store := newMongoStore(mt.Coll)

		info, err := store.Find(ctx, "file-1")
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if info.ID != "file-1" || info.Filename != "c.jpg" || info.ContentType != "image/jpeg" {
			t.Errorf("unexpected record: %+v", info)
		}
	})

	mt.Run("find missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		store := newMongoStore(mt.Coll)

		_, err := store.Find(ctx, "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		store := newMongoStore(mt.Coll)

		if err := store.Delete(ctx, &FileInfo{ID: "file-1"}); err != nil {
			t.Errorf("Delete failed: %v", err)
		}
	})
}
