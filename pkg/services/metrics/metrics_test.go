package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Name:      "metrics_test_total",
	Help:      "Test counter",
	Namespace: "jserial",
})

func init() {
	prometheus.MustRegister(testCounter)
}

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusService(t *testing.T) {
	testCounter.Add(3)
	cfg := config.BasicService{Enabled: true, Addresses: []string{"localhost:0", "localhost:0"}}
	srv := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)

	addrs := srv.Addresses()
	// Duplicates are served once.
	require.Len(t, addrs, 1)
	require.Contains(t, get(t, "http://"+addrs[0]+"/metrics"), "jserial_metrics_test_total 3")
}

func TestPprofService(t *testing.T) {
	srv := NewPprofService(config.BasicService{Enabled: true, Addresses: []string{"localhost:0"}}, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)
	require.Contains(t, get(t, "http://"+srv.Addresses()[0]+"/debug/pprof/cmdline"), "metrics.test")
}

func TestServiceDisabled(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{Addresses: []string{"localhost:0"}}, nil)
	require.NoError(t, srv.Start())
	require.Equal(t, []string{"localhost:0"}, srv.Addresses())
	srv.ShutDown()
}

func TestServiceBusyAddress(t *testing.T) {
	first := NewPrometheusService(config.BasicService{Enabled: true, Addresses: []string{"localhost:0"}}, nil)
	require.NoError(t, first.Start())
	t.Cleanup(first.ShutDown)

	second := NewPrometheusService(config.BasicService{Enabled: true, Addresses: first.Addresses()}, nil)
	require.Error(t, second.Start())
	second.ShutDown()
}
