package monitor

import (
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/appkit/pkg/logger"
)

var (
	// SignalDeliveries counts dispatched notifications, partitioned by signal and outcome.
	SignalDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appkit_signal_deliveries_total",
		Help: "Signals and service controls dispatched by a binder",
	}, []string{"signal", "outcome"})
	// HandlerDuration tracks how long one delivery took, both handlers included.
	HandlerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "appkit_handler_duration_seconds",
		Help:    "Time spent running the handler pair of one delivery",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	})
	// ProcessStatus is 1 for the current application status, 0 for the others.
	ProcessStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "appkit_process_status",
		Help: "Current application status",
	}, []string{"status"})
	// InstanceConflicts counts launches that found another instance holding the lock.
	InstanceConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appkit_instance_conflicts_total",
		Help: "Launches that found another running instance",
	})
	// Launches counts launch attempts, partitioned by mode and result.
	Launches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appkit_launches_total",
		Help: "Launch attempts",
	}, []string{"mode", "result"})
)

var registerOnce sync.Once

// Register adds every collector to reg. Only the first call has an effect,
// so several launches in one process can share the default registry.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(SignalDeliveries, HandlerDuration, ProcessStatus, InstanceConflicts, Launches)
	})
}

// SetStatus flips the status gauge to status.
func SetStatus(status string, all ...string) {
	for _, s := range all {
		ProcessStatus.WithLabelValues(s).Set(0)
	}
	ProcessStatus.WithLabelValues(status).Set(1)
}

// InitMetrics registers the collectors and starts an HTTP server exposing them.
// It takes an address string (e.g., ":9090") on which to listen for requests.
func InitMetrics(addr string) *http.Server {
	srv := newServer(addr)
	go func() {
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
	return srv
}

// ServeMetrics is InitMetrics on a listener that is already bound, such as
// one inherited from the foreground process.
func ServeMetrics(l net.Listener) *http.Server {
	srv := newServer(l.Addr().String())
	go func() {
		logger.Log.Info("Metrics server starting", "addr", l.Addr().String())
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
	return srv
}

func newServer(addr string) *http.Server {
	Register(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}

// Personal.AI order the ending
