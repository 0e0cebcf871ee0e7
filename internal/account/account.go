// Package account persists accounts created alongside an uploaded file.
package account

import (
	"context"
	"time"

	"github.com/yashlad/fserver/internal/metadata"
)

// Account is a user record that owns at most one stored file.
type Account struct {
	ID        string             `bson:"_id" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	FileInfo  *metadata.FileInfo `bson:"file_info,omitempty" json:"fileInfo,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// Store persists accounts. Delete exists so a failed batch can undo the
// accounts it already created.
type Store interface {
	Save(ctx context.Context, account *Account) (*Account, error)
	Delete(ctx context.Context, id string) error
}
