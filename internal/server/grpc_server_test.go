package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) (*IngestClient, *grpc.ClientConn, *testEnv) {
	t.Helper()
	return newTestClientWith(t, GRPCOptions{RequestTimeout: 5 * time.Second})
}

func newTestClientWith(t *testing.T, opts GRPCOptions) (*IngestClient, *grpc.ClientConn, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	lis := bufconn.Listen(1024 * 1024)
	opts.Logger = zaptest.NewLogger(t)
	srv := NewGRPCServer(env.svc, opts)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewIngestClient(conn), conn, env
}

func png(name string) FileMessage {
	return FileMessage{Filename: name, ContentType: "image/png", Data: []byte("png:" + name)}
}

func TestGRPCPing(t *testing.T) {
	client, _, _ := newTestClient(t)

	reply, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
}

func TestGRPCStoreSingle(t *testing.T) {
	client, _, env := newTestClient(t)
	ctx := context.Background()

	t.Run("stores file", func(t *testing.T) {
		stored, err := client.StoreSingle(ctx, png("a.png"))
		require.NoError(t, err)

		assert.Equal(t, "File Store :- ", stored.Message)
		require.NotNil(t, stored.Entity)
		assert.Equal(t, "a.png", stored.Entity.Filename)
		assert.Equal(t, int64(len("png:a.png")), stored.Entity.Size)

		found, err := client.FindFile(ctx, stored.Entity.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.Entity.ID, found.Entity.ID)
	})

	t.Run("invalid type maps to InvalidArgument", func(t *testing.T) {
		_, err := client.StoreSingle(ctx, FileMessage{Filename: "b.txt", ContentType: "text/plain", Data: []byte("x")})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.InvalidArgument, st.Code())
		assert.Equal(t, "Wrong file type upload text/plain while required => [image/jpeg image/png image/jpg]", st.Message())
		assert.Len(t, env.files.files, 1)
	})

	t.Run("unknown id maps to NotFound", func(t *testing.T) {
		_, err := client.FindFile(ctx, "missing")
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestGRPCUploadSizeLimit(t *testing.T) {
	const limit = 1 << 20
	client, _, env := newTestClientWith(t, GRPCOptions{MaxUploadSize: limit})
	ctx := context.Background()

	t.Run("just under the limit", func(t *testing.T) {
		file := png("big.png")
		file.Data = bytes.Repeat([]byte{0x7f}, limit-1024)

		stored, err := client.StoreSingle(ctx, file)
		require.NoError(t, err)
		assert.Equal(t, int64(limit-1024), stored.Entity.Size)
	})

	t.Run("well over the limit", func(t *testing.T) {
		file := png("huge.png")
		file.Data = bytes.Repeat([]byte{0x7f}, 2*limit)

		_, err := client.StoreSingle(ctx, file)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
		assert.Len(t, env.files.files, 1)
	})
}

func TestMaxMessageSize(t *testing.T) {
	assert.Equal(t, base64.StdEncoding.EncodedLen(defaultMaxUploadSize)+messageOverhead, maxMessageSize(0))
	assert.Greater(t, maxMessageSize(8<<20), 8<<20*4/3)
}

func TestGRPCStoreMany(t *testing.T) {
	client, _, env := newTestClient(t)
	ctx := context.Background()

	out, err := client.StoreMany(ctx, []FileMessage{png("1.png"), png("2.png")})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1.png", out[0].Entity.Filename)
	assert.Equal(t, "2.png", out[1].Entity.Filename)

	_, err = client.StoreMany(ctx, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Len(t, env.files.files, 2)
}

func TestGRPCAccounts(t *testing.T) {
	client, _, env := newTestClient(t)
	ctx := context.Background()

	acc, err := client.StoreWithAccount(ctx, &StoreWithAccountRequest{File: png("c.png"), Email: "x@y.com", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "File save with account", acc.Message)
	assert.Equal(t, "x@y.com", acc.Entity.Email)
	assert.Empty(t, acc.Entity.Password)
	require.NotNil(t, acc.Entity.FileInfo)
	assert.Equal(t, "c.png", acc.Entity.FileInfo.Filename)

	out, err := client.StoreAccounts(ctx, []StoreWithAccountRequest{
		{File: png("1.png"), Email: "one@example.com", Password: "p1"},
		{File: png("2.png"), Email: "two@example.com", Password: "p2"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "two@example.com", out[1].Entity.Email)
	assert.Len(t, env.accounts.accounts, 3)

	_, err = client.StoreAccounts(ctx, []StoreWithAccountRequest{
		{File: png("3.png"), Email: "three@example.com", Password: "p3"},
		{File: FileMessage{Filename: "x.bmp", ContentType: "image/bmp"}, Email: "four@example.com", Password: "p4"},
	})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Account with Wrong file type upload [x.bmp => image/bmp] while required => [image/jpeg image/png image/jpg]", st.Message())
	assert.Len(t, env.accounts.accounts, 3)
}

func TestGRPCHealth(t *testing.T) {
	_, conn, _ := newTestClient(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: IngestServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestJSONCodecHandlesProtoMessages(t *testing.T) {
	codec := jsonCodec{}

	data, err := codec.Marshal(&healthpb.HealthCheckRequest{Service: "svc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"service":"svc"}`, string(data))

	var req healthpb.HealthCheckRequest
	require.NoError(t, codec.Unmarshal(data, &req))
	assert.Equal(t, "svc", req.Service)

	data, err = codec.Marshal(&FindFileRequest{ID: "f1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"f1"}`, string(data))
}
