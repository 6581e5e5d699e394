package metrics

import (
	"errors"

	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	TierMemory = "memory"
	TierDisk   = "disk"
	TierOrigin = "origin"
)

// Metrics holds all Prometheus metrics of the fetch pipelines, labelled by pipeline namespace.
type Metrics struct {
	Resolved       *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	OriginBytes    *prometheus.CounterVec
	CorruptBlobs   *prometheus.CounterVec
	PersistFailure *prometheus.CounterVec
	InFlight       *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg; a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashfetch_resolved_total",
			Help: "Fetches resolved, by the tier that produced the value",
		}, []string{"pipeline", "tier"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashfetch_failures_total",
			Help: "Failed fetches by error kind",
		}, []string{"pipeline", "kind"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ashfetch_fetch_duration_seconds",
			Help:    "Fetch latency by resolving tier",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 9),
		}, []string{"pipeline", "tier"}),
		OriginBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashfetch_origin_bytes_total",
			Help: "Bytes loaded from origin",
		}, []string{"pipeline"}),
		CorruptBlobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashfetch_corrupt_blobs_total",
			Help: "Persisted blobs that failed to decode and were removed",
		}, []string{"pipeline"}),
		PersistFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ashfetch_persist_failures_total",
			Help: "Values served without caching because the disk write failed",
		}, []string{"pipeline"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ashfetch_inflight_units",
			Help: "Producer units currently running",
		}, []string{"pipeline"}),
	}

	if reg != nil {
		reg.MustRegister(m.Resolved, m.Failures, m.FetchDuration, m.OriginBytes, m.CorruptBlobs, m.PersistFailure, m.InFlight)
	}
	return m
}

// Pipeline is the metric set of a single pipeline.
type Pipeline struct {
	Resolved       *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	FetchDuration  prometheus.ObserverVec
	OriginBytes    prometheus.Counter
	CorruptBlobs   prometheus.Counter
	PersistFailure prometheus.Counter
	InFlight       prometheus.Gauge
}

func (m *Metrics) Pipeline(namespace string) *Pipeline {
	l := prometheus.Labels{"pipeline": namespace}
	return &Pipeline{
		Resolved:       m.Resolved.MustCurryWith(l),
		Failures:       m.Failures.MustCurryWith(l),
		FetchDuration:  m.FetchDuration.MustCurryWith(l),
		OriginBytes:    m.OriginBytes.With(l),
		CorruptBlobs:   m.CorruptBlobs.With(l),
		PersistFailure: m.PersistFailure.With(l),
		InFlight:       m.InFlight.With(l),
	}
}

// ErrorKind is the failure label of err.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrCancelled):
		return "cancelled"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, model.ErrTransport):
		return "transport"
	case errors.Is(err, model.ErrDecode):
		return "decode"
	case errors.Is(err, model.ErrTransformFailed):
		return "transform"
	default:
		return "other"
	}
}
