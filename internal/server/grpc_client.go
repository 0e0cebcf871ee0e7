package server

import (
	"context"

	"google.golang.org/grpc"
)

// IngestClient calls the fserver.v1.Ingest service with the JSON codec.
type IngestClient struct {
	cc grpc.ClientConnInterface
}

func NewIngestClient(cc grpc.ClientConnInterface) *IngestClient {
	return &IngestClient{cc: cc}
}

func (c *IngestClient) Ping(ctx context.Context) (string, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, "Ping", &PingRequest{}, out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *IngestClient) StoreSingle(ctx context.Context, file FileMessage) (*FileEnvelope, error) {
	out := new(FileEnvelope)
	if err := c.invoke(ctx, "StoreSingle", &StoreSingleRequest{File: file}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestClient) StoreMany(ctx context.Context, files []FileMessage) ([]FileEnvelope, error) {
	out := new(StoreManyResponse)
	if err := c.invoke(ctx, "StoreMany", &StoreManyRequest{Files: files}, out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *IngestClient) StoreWithAccount(ctx context.Context, req *StoreWithAccountRequest) (*AccountEnvelope, error) {
	out := new(AccountEnvelope)
	if err := c.invoke(ctx, "StoreWithAccount", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestClient) StoreAccounts(ctx context.Context, accounts []StoreWithAccountRequest) ([]AccountEnvelope, error) {
	out := new(StoreAccountsResponse)
	if err := c.invoke(ctx, "StoreAccounts", &StoreAccountsRequest{Accounts: accounts}, out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *IngestClient) FindFile(ctx context.Context, id string) (*FileEnvelope, error) {
	out := new(FileEnvelope)
	if err := c.invoke(ctx, "FindFile", &FindFileRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+IngestServiceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}
