package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "fserver"

// IngestObserver exports ingest pipeline metrics to Prometheus.
type IngestObserver struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
	files    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewIngestObserver registers the ingest metrics with reg. Collectors that
// are already registered are reused.
func NewIngestObserver(namespace string, reg prometheus.Registerer) (*IngestObserver, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Latency of ingest operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Count of ingest operations by outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}
	files, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "files_stored_total",
		Help:      "Files committed by successful ingest operations.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	bytes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "stored_bytes_total",
		Help:      "Payload bytes committed by successful ingest operations.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	return &IngestObserver{duration: duration, requests: requests, files: files, bytes: bytes}, nil
}

// ObserveIngest records one finished ingest operation.
func (o *IngestObserver) ObserveIngest(op, outcome string, duration time.Duration, files int, bytes int64) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op, outcome).Observe(duration.Seconds())
	o.requests.WithLabelValues(op, outcome).Inc()
	if outcome != "ok" {
		return
	}
	o.files.WithLabelValues(op).Add(float64(files))
	o.bytes.WithLabelValues(op).Add(float64(bytes))
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register ingest metric: %w", err)
	}
	return c, nil
}
