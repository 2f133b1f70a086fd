// Package metrics exposes gamdam's run counters over Prometheus's
// text-exposition format, plus Go's pprof profiles, on an optional HTTP
// listener.
//
// Grounded on the teacher's StartMetricsServer/serveMetrics in
// internal/downloader/downloader.go: the same promhttp.Handler() +
// net/http/pprof wiring, narrowed to the counters gamdam's pipeline
// actually produces (addurl/metadata/registerurl completions by status,
// and an in-flight gauge instead of the teacher's HTTP-request gauge).
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and gauge the pipeline updates as it runs.
type Metrics struct {
	AddURLTotal      *prometheus.CounterVec
	MetadataTotal    *prometheus.CounterVec
	RegisterURLTotal *prometheus.CounterVec
	InFlight         prometheus.Gauge

	registry *prometheus.Registry
}

// New builds a fresh, unregistered-with-the-default-registry Metrics set:
// every run gets its own prometheus.Registry so repeated calls in tests
// don't collide on prometheus's global MustRegister panic-on-duplicate
// behavior.
func New() *Metrics {
	m := &Metrics{
		AddURLTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamdam_addurl_completions_total",
			Help: "addurl completions by status (ok|failed).",
		}, []string{"status"}),
		MetadataTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamdam_metadata_completions_total",
			Help: "metadata attachments by status (ok|failed).",
		}, []string{"status"}),
		RegisterURLTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamdam_registerurl_completions_total",
			Help: "registerurl calls by status (ok|failed).",
		}, []string{"status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamdam_inflight_downloads",
			Help: "Number of downloads currently tracked by the in-flight map.",
		}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.AddURLTotal, m.MetadataTotal, m.RegisterURLTotal, m.InFlight)
	return m
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// ObserveAddURL increments AddURLTotal for one completed download.
func (m *Metrics) ObserveAddURL(ok bool) { m.AddURLTotal.WithLabelValues(statusLabel(ok)).Inc() }

// ObserveMetadata increments MetadataTotal for one metadata attachment.
func (m *Metrics) ObserveMetadata(ok bool) { m.MetadataTotal.WithLabelValues(statusLabel(ok)).Inc() }

// ObserveRegisterURL increments RegisterURLTotal for one registerurl call.
func (m *Metrics) ObserveRegisterURL(ok bool) {
	m.RegisterURLTotal.WithLabelValues(statusLabel(ok)).Inc()
}

// SetInFlight sets the InFlight gauge to n.
func (m *Metrics) SetInFlight(n int) { m.InFlight.Set(float64(n)) }

// Server wraps the HTTP listener serving /metrics and /debug/pprof/*.
type Server struct {
	httpSrv *http.Server
	ln      net.Listener
	wg      sync.WaitGroup
}

// Addr returns the listener's bound address (useful when addr was ":0").
func (s *Server) Addr() string { return s.ln.Addr().String() }

// StartServer starts serving m's registry and pprof at addr in the
// background. An empty addr is a no-op (returns nil), mirroring the
// teacher's StartMetricsServer("") early-return. A startup failure (e.g.
// address already in use) is logged and StartServer returns nil.
func StartServer(addr string, m *Metrics, logger *slog.Logger) *Server {
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("metrics server listen failed", "addr", addr, "error", err)
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s := &Server{httpSrv: &http.Server{Handler: mux}, ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Info("metrics/pprof listening", "addr", ln.Addr().String())
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return s
}

// Shutdown stops the listener and waits for its goroutine to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	err := s.httpSrv.Shutdown(ctx)
	s.wg.Wait()
	return err
}
