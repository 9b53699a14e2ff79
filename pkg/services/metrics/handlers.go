package metrics

import (
	"net/http"
	"net/http/pprof"

	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewHandlerService creates a service serving handler on every configured
// address.
func NewHandlerService(name string, cfg config.BasicService, handler http.Handler, log *zap.Logger) *Service {
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return NewService(name, srvs, cfg, log)
}

// NewPrometheusService creates a new service for gathering prometheus metrics
// (https://prometheus.io/docs/guides/go-application).
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	// Handlers share metrics of the default registry.
	return NewHandlerService("Prometheus", cfg, promhttp.Handler(), log)
}

// NewPprofService creates a new service for gathering pprof metrics.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	handler := http.NewServeMux()
	handler.HandleFunc("/debug/pprof/", pprof.Index)
	handler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	handler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	handler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	handler.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return NewHandlerService("Pprof", cfg, handler, log)
}
