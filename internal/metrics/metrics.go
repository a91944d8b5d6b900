// Package metrics exports flash driver activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flashcore/flash"
)

// flashMetrics is the Prometheus implementation of flash.Metrics.
type flashMetrics struct {
	operations *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pageErases prometheus.Counter
}

// NewFlashMetrics registers the flash collectors on reg.
//
// Returns nil if enabled is false. A nil flash.Metrics in flash.Options
// turns collection off entirely.
func NewFlashMetrics(enabled bool, reg prometheus.Registerer) flash.Metrics {
	if !enabled {
		return nil
	}

	return &flashMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_flash_operations_total",
				Help: "Total number of flash driver operations by operation and result",
			},
			[]string{"op", "result"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashcore_flash_bytes_total",
				Help: "Bytes requested from flash driver operations that completed OK",
			},
			[]string{"op"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "flashcore_flash_operation_duration_milliseconds",
				Help: "Duration of flash driver operations in milliseconds",
				Buckets: []float64{
					0.01, // cached/erased reads
					0.1,
					0.5,
					1,
					5, // typical page erase+program
					10,
					50,
					100,
					500, // bulk erase
					1000,
				},
			},
			[]string{"op"},
		),
		pageErases: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "flashcore_flash_page_erases_total",
				Help: "Total number of physical page erases issued to the controller",
			},
		),
	}
}

func (m *flashMetrics) ObserveOp(op flash.Op, res flash.Result, bytes int, elapsed time.Duration) {
	m.operations.WithLabelValues(string(op), res.String()).Inc()
	if res == flash.ResultOK && bytes > 0 {
		m.bytes.WithLabelValues(string(op)).Add(float64(bytes))
	}
	m.duration.WithLabelValues(string(op)).Observe(float64(elapsed) / float64(time.Millisecond))
}

func (m *flashMetrics) ObservePageErase() {
	m.pageErases.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
