// Package server exposes the ingest pipeline over HTTP (gin) and gRPC.
package server

import (
	"context"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/ingest"
	"github.com/yashlad/fserver/internal/metadata"
)

// PingReply is the liveness answer of both transports.
const PingReply = "pong"

type (
	FileEnvelope    = ingest.Envelope[metadata.FileInfo]
	AccountEnvelope = ingest.Envelope[account.Account]
)

// Ingester is the part of ingest.Service the transports depend on.
type Ingester interface {
	StoreSingle(ctx context.Context, content ingest.FileContent) (FileEnvelope, error)
	StoreMany(ctx context.Context, contents []ingest.FileContent) ([]FileEnvelope, error)
	StoreWithAccount(ctx context.Context, content ingest.FileContent, fields ingest.AccountFields) (AccountEnvelope, error)
	StoreAccounts(ctx context.Context, items []ingest.AccountItem) ([]AccountEnvelope, error)
	FindFile(ctx context.Context, id string) (FileEnvelope, error)
	OpenFile(ctx context.Context, id string) (*metadata.FileInfo, []byte, error)
}

var _ Ingester = (*ingest.Service)(nil)
