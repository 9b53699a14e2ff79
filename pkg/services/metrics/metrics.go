/*
Package metrics provides HTTP services of the tool: Prometheus metrics, pprof
and the base Service other HTTP endpoints are built on.
*/
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/nspcc-dev/jserial/pkg/config"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

// Service serves HTTP handlers on a set of addresses.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     chan struct{}
}

// NewService configures logger and returns new service instance.
func NewService(name string, httpServers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		http:        httpServers,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
		started:     make(chan struct{}),
	}
}

// Start runs http service with the exposed endpoint on the configured port.
// It returns once all listeners are bound.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	var lns = make([]net.Listener, 0, len(ms.http))
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range lns {
				_ = l.Close()
			}
			return err
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		lns = append(lns, ln)
	}
	for i, srv := range ms.http {
		ms.log.Info("service is running", zap.String("endpoint", srv.Addr))
		go func(srv *http.Server, ln net.Listener) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to serve", zap.String("endpoint", srv.Addr), zap.Error(err))
			}
		}(srv, lns[i])
	}
	close(ms.started)
	return nil
}

// Addresses returns the addresses the service listens on, it's only
// meaningful after Start.
func (ms *Service) Addresses() []string {
	res := make([]string, 0, len(ms.http))
	for _, srv := range ms.http {
		res = append(res, srv.Addr)
	}
	return res
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	select {
	case <-ms.started:
	default:
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
}
