package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yashlad/fserver/internal/account"
	"github.com/yashlad/fserver/internal/config"
	"github.com/yashlad/fserver/internal/database"
	"github.com/yashlad/fserver/internal/ingest"
	"github.com/yashlad/fserver/internal/logger"
	"github.com/yashlad/fserver/internal/metadata"
	"github.com/yashlad/fserver/internal/metrics"
	"github.com/yashlad/fserver/internal/server"
	"github.com/yashlad/fserver/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting fserver",
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.String("grpc_port", cfg.Server.GRPCPort),
		zap.String("blob_backend", cfg.Blob.Backend))

	client, err := database.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	db := client.Database(cfg.Mongo.Database)
	mongoFiles, err := metadata.NewMongoStore(ctx, db)
	if err != nil {
		return err
	}
	files, err := metadata.NewCachedStore(mongoFiles, cfg.App.MetadataCacheSize)
	if err != nil {
		return err
	}
	accounts, err := account.NewMongoStore(ctx, db)
	if err != nil {
		return err
	}

	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewIngestObserver("fserver", reg)
	if err != nil {
		return err
	}

	svc := ingest.New(blobs, files, accounts,
		ingest.WithLogger(log.Named("ingest")),
		ingest.WithObserver(observer))

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(svc, server.RouterOptions{
		MaxUploadSize:  cfg.App.MaxUploadSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Gatherer:       reg,
		Logger:         log.Named("http"),
	})
	httpServer := server.NewHTTPServer(router,
		server.WithAddress(cfg.Server.HTTPAddr),
		server.WithHTTPLogger(log))

	grpcServer := server.NewGRPCServer(svc, server.GRPCOptions{
		MaxUploadSize:  cfg.App.MaxUploadSize,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         log.Named("grpc"),
	})
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		return httpServer.Stop(shutdownCtx)
	})

	return g.Wait()
}

func newBlobStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.BlobStore, error) {
	if cfg.Blob.Backend == config.BackendS3 {
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		log.Info("using S3 blob store", zap.String("bucket", cfg.S3.Bucket))
		return storage.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix, log.Named("s3")), nil
	}

	sharded := storage.NewShardedStore(cfg.Blob.ReplicaFactor, log.Named("storage"))
	for i, path := range cfg.Blob.Nodes {
		id := fmt.Sprintf("node-%d", i+1)
		if err := sharded.AddNode(id, path); err != nil {
			return nil, fmt.Errorf("register node %s: %w", id, err)
		}
		log.Info("registered storage node", zap.String("node", id), zap.String("path", path))
	}
	log.Info("using sharded blob store",
		zap.Int("nodes", sharded.NodeCount()),
		zap.Int("replica_factor", cfg.Blob.ReplicaFactor))
	return sharded, nil
}
