package server

import (
	"context"
	"encoding/base64"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/yashlad/fserver/internal/ingest"
)

// IngestServiceName is the full gRPC service name.
const IngestServiceName = "fserver.v1.Ingest"

const defaultMaxUploadSize = 10 * 1024 * 1024 // 10MB

// messageOverhead covers the JSON framing around the base64 file data.
const messageOverhead = 64 * 1024

// FileMessage is an upload on the wire. Data is base64 in JSON.
type FileMessage struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

type PingRequest struct{}

type PingResponse struct {
	Message string `json:"message"`
}

type StoreSingleRequest struct {
	File FileMessage `json:"file"`
}

type StoreManyRequest struct {
	Files []FileMessage `json:"files"`
}

type StoreManyResponse struct {
	Results []FileEnvelope `json:"results"`
}

type StoreWithAccountRequest struct {
	File     FileMessage `json:"file"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
}

type StoreAccountsRequest struct {
	Accounts []StoreWithAccountRequest `json:"accounts"`
}

type StoreAccountsResponse struct {
	Results []AccountEnvelope `json:"results"`
}

type FindFileRequest struct {
	ID string `json:"id"`
}

// IngestServer is the server API of the fserver.v1.Ingest service.
type IngestServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	StoreSingle(context.Context, *StoreSingleRequest) (*FileEnvelope, error)
	StoreMany(context.Context, *StoreManyRequest) (*StoreManyResponse, error)
	StoreWithAccount(context.Context, *StoreWithAccountRequest) (*AccountEnvelope, error)
	StoreAccounts(context.Context, *StoreAccountsRequest) (*StoreAccountsResponse, error)
	FindFile(context.Context, *FindFileRequest) (*FileEnvelope, error)
}

var ingestServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Ping", IngestServer.Ping),
		unaryMethod("StoreSingle", IngestServer.StoreSingle),
		unaryMethod("StoreMany", IngestServer.StoreMany),
		unaryMethod("StoreWithAccount", IngestServer.StoreWithAccount),
		unaryMethod("StoreAccounts", IngestServer.StoreAccounts),
		unaryMethod("FindFile", IngestServer.FindFile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fserver/v1/ingest",
}

func unaryMethod[Req, Resp any](name string, call func(IngestServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + IngestServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IngestServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(IngestServer), ctx, req.(*Req))
			})
		},
	}
}

// RegisterIngestServer registers srv on s.
func RegisterIngestServer(s grpc.ServiceRegistrar, srv IngestServer) {
	s.RegisterService(&ingestServiceDesc, srv)
}

// GRPCOptions configures NewGRPCServer.
type GRPCOptions struct {
	// MaxUploadSize bounds the decoded file bytes of one request.
	MaxUploadSize  int64
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewGRPCServer returns a grpc.Server carrying the ingest, health and
// reflection services.
func NewGRPCServer(svc Ingester, opts GRPCOptions) *grpc.Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxMsg := maxMessageSize(opts.MaxUploadSize)

	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsg),
		grpc.MaxSendMsgSize(maxMsg),
		grpc.ChainUnaryInterceptor(loggingInterceptor(log)),
	)
	RegisterIngestServer(srv, NewIngestServer(svc, opts.RequestTimeout))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(IngestServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	// Enable reflection for debugging with grpcurl
	reflection.Register(srv)
	return srv
}

// maxMessageSize is the wire size of a request carrying maxUpload bytes of
// file data, which the JSON codec sends base64 encoded.
func maxMessageSize(maxUpload int64) int {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadSize
	}
	return base64.StdEncoding.EncodedLen(int(maxUpload)) + messageOverhead
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)))
		return resp, err
	}
}

// ingestServer implements IngestServer on top of an Ingester.
type ingestServer struct {
	svc     Ingester
	timeout time.Duration
}

// NewIngestServer adapts svc to the gRPC API. A positive timeout bounds
// every call.
func NewIngestServer(svc Ingester, timeout time.Duration) IngestServer {
	return &ingestServer{svc: svc, timeout: timeout}
}

func (s *ingestServer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *ingestServer) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	return &PingResponse{Message: PingReply}, nil
}

func (s *ingestServer) StoreSingle(ctx context.Context, req *StoreSingleRequest) (*FileEnvelope, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	env, err := s.svc.StoreSingle(ctx, req.File.content())
	if err != nil {
		return nil, toStatus(err)
	}
	return &env, nil
}

func (s *ingestServer) StoreMany(ctx context.Context, req *StoreManyRequest) (*StoreManyResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	contents := make([]ingest.FileContent, len(req.Files))
	for i, f := range req.Files {
		contents[i] = f.content()
	}
	out, err := s.svc.StoreMany(ctx, contents)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StoreManyResponse{Results: out}, nil
}

func (s *ingestServer) StoreWithAccount(ctx context.Context, req *StoreWithAccountRequest) (*AccountEnvelope, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	env, err := s.svc.StoreWithAccount(ctx, req.File.content(), req.fields())
	if err != nil {
		return nil, toStatus(err)
	}
	return &env, nil
}

func (s *ingestServer) StoreAccounts(ctx context.Context, req *StoreAccountsRequest) (*StoreAccountsResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items := make([]ingest.AccountItem, len(req.Accounts))
	for i, a := range req.Accounts {
		items[i] = ingest.AccountItem{File: a.File.content(), Fields: a.fields()}
	}
	out, err := s.svc.StoreAccounts(ctx, items)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StoreAccountsResponse{Results: out}, nil
}

func (s *ingestServer) FindFile(ctx context.Context, req *FindFileRequest) (*FileEnvelope, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	env, err := s.svc.FindFile(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &env, nil
}

func (m FileMessage) content() ingest.FileContent {
	return ingest.FileContent{Filename: m.Filename, ContentType: m.ContentType, Data: m.Data}
}

func (r StoreWithAccountRequest) fields() ingest.AccountFields {
	return ingest.AccountFields{Email: r.Email, Password: r.Password}
}

// toStatus maps a pipeline error onto a gRPC status carrying the public
// message.
func toStatus(err error) error {
	st, message := ingest.Classify(err)
	code := codes.Internal
	switch st {
	case ingest.StatusBadRequest:
		code = codes.InvalidArgument
	case ingest.StatusNotFound:
		code = codes.NotFound
	}
	return status.Error(code, message)
}
