package capture

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memcapture/internal/config"
	"memcapture/internal/logger"
)

// Server is the optional self-telemetry HTTP endpoint. It exposes the
// pipeline stats registry (and pprof when enabled) while a capture runs,
// which is mostly useful for long captures on misbehaving devices.
type Server struct {
	srv *http.Server
	log log.Logger
}

// NewServer builds the HTTP server from configuration. The registry should
// already contain the pipeline stats collector.
func NewServer(cfg config.ServerConfig, registry *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
            <head><title>MemCapture</title></head>
            <body>
            <h1>MemCapture</h1>
            <p><a href="` + cfg.MetricsPath + `">Pipeline metrics</a></p>
            </body>
            </html>`))
	})

	if cfg.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return &Server{
		srv: &http.Server{Addr: cfg.ListenAddress, Handler: mux},
		log: logger.NewLoggerWithContext("http_server"),
	}
}

// Start serves in a background goroutine. Listen failures are logged, not
// fatal: the capture itself does not depend on the endpoint.
func (s *Server) Start() {
	s.log.Info().Str("address", s.srv.Addr).Msg("Starting self-telemetry HTTP server")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Self-telemetry HTTP server failed")
		}
	}()
}

// Shutdown stops the server gracefully with a short deadline.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Error shutting down self-telemetry HTTP server")
	}
}
