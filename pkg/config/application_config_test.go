package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestApplicationConfiguration_Services checks that BasicService configs of
// all services can be properly unmarshalled.
func TestApplicationConfiguration_Services(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "jserial.yml"))
	require.NoError(t, err)
	app := cfg.Application
	require.Equal(t, "info", app.LogLevel)
	require.Equal(t, "./lib", app.ClassPath)
	require.Equal(t, BasicService{Enabled: true, Addresses: []string{"localhost:8089"}}, app.Bridge)
	require.Equal(t, BasicService{Addresses: []string{":2112"}}, app.Prometheus)
	require.Equal(t, BasicService{Addresses: []string{"localhost:2113"}}, app.Pprof)
}
