// Package metrics exposes Prometheus collectors for the polling
// pipeline and serves them over a /metrics listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/event"
)

var (
	pollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swmgr_poll_total",
			Help: "Total number of poll attempts.",
		},
		[]string{"category", "result"},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swmgr_poll_duration_seconds",
			Help:    "Poll duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)
	deviceUnavailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swmgr_device_unavailable",
			Help: "Number of devices currently marked unavailable.",
		},
	)
	entitiesChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swmgr_entities_total",
			Help: "Total entity registry changes.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(pollTotal)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(deviceUnavailable)
	prometheus.MustRegister(entitiesChanged)
}

// RecordPoll counts one poll attempt and its duration.
func RecordPoll(category, result string, d time.Duration) {
	pollTotal.WithLabelValues(category, result).Inc()
	pollDuration.WithLabelValues(category).Observe(d.Seconds())
}

// Observe wires the collectors to the event bus. Poll durations are
// recorded directly by the manager; everything else derives from
// lifecycle events.
func Observe(bus *event.Bus) {
	bus.Subscribe(event.TopicDeviceUnavailable, func(ctx context.Context, ev event.Event) {
		deviceUnavailable.Inc()
	})
	bus.Subscribe(event.TopicDeviceRecovered, func(ctx context.Context, ev event.Event) {
		deviceUnavailable.Dec()
	})
	bus.Subscribe(event.TopicEntitiesChanged, func(ctx context.Context, ev event.Event) {
		p, ok := ev.Payload.(event.EntitiesChangedPayload)
		if !ok {
			return
		}
		entitiesChanged.WithLabelValues("create").Add(float64(p.Created))
		entitiesChanged.WithLabelValues("update").Add(float64(p.Updated))
		entitiesChanged.WithLabelValues("remove").Add(float64(p.Removed))
	})
}

// Server serves the Prometheus scrape endpoint.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a /metrics listener on addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.Named("metrics"),
	}
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("metrics listener started", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
