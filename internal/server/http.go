package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// MaxUploadSize bounds a request body in bytes. Zero disables the limit.
	MaxUploadSize  int64
	RequestTimeout time.Duration
	// Gatherer backs GET /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter builds the gin engine serving the ingest routes.
func NewRouter(svc Ingester, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := promhttp.Handler()
	if opts.Gatherer != nil {
		metrics = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(log))

	h := &handler{svc: svc, log: log}
	router.GET("/ping", h.ping)
	router.GET("/metrics", gin.WrapH(metrics))

	api := router.Group("/", limits(opts.MaxUploadSize, opts.RequestTimeout))
	{
		api.POST("/files/single", h.storeSingle)
		api.POST("/files/batch", h.storeMany)
		api.POST("/accounts/single", h.storeWithAccount)
		api.POST("/accounts/batch", h.storeAccounts)
		api.GET("/files/:id", h.findFile)
		api.GET("/files/:id/content", h.fileContent)
	}

	return router
}

// HTTPServer runs an http.Server until Stop is called.
type HTTPServer struct {
	server *http.Server
	log    *zap.Logger
}

type HTTPOption func(*HTTPServer)

func NewHTTPServer(handler http.Handler, options ...HTTPOption) *HTTPServer {
	srv := &HTTPServer{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1 MB
		},
		log: zap.NewNop(),
	}
	for _, opt := range options {
		opt(srv)
	}
	return srv
}

func WithAddress(address string) HTTPOption {
	return func(srv *HTTPServer) {
		srv.server.Addr = address
	}
}

func WithHTTPLogger(log *zap.Logger) HTTPOption {
	return func(srv *HTTPServer) {
		if log != nil {
			srv.log = log
		}
	}
}

// Start serves until Stop. A server closed by Stop returns nil.
func (s *HTTPServer) Start() error {
	s.log.Info("starting HTTP server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.log.Info("stopping HTTP server", zap.String("address", s.server.Addr))
	return s.server.Shutdown(ctx)
}
