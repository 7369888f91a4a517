package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/predictive-sensor/infra/logger"
)

// StartPromServer serves the default Prometheus gatherer on addr until ctx is
// canceled.
func StartPromServer(ctx context.Context, addr string, log logger.Logger, routes map[string]http.Handler) error {
	return ServeMetrics(ctx, addr, prometheus.DefaultGatherer, log, routes)
}

// ServeMetrics exposes g on /metrics, a liveness probe on /healthz and the
// extra routes. A dedicated ServeMux keeps other handlers out.
func ServeMetrics(ctx context.Context, addr string, g prometheus.Gatherer, log logger.Logger, routes map[string]http.Handler) error {
	if log == nil {
		log = logger.NopLogger{}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
