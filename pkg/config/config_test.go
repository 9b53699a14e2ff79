package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/jserial/internal/testserdes"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	p := filepath.Join(t.TempDir(), "jserial.yml")
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
Rewriter:
  MarkerHeader: "X-Edited: yes"
  MediaTypes:
    - application/x-java-serialized-object
  DumpPayloads: true
Application:
  LogLevel: debug
  ClassPath: ./lib
  Bridge:
    Enabled: true
    Addresses:
      - "localhost:8089"
`)
	cfg, err := LoadFile(p)
	require.NoError(t, err)
	require.Equal(t, Config{
		Rewriter: Rewriter{
			MarkerHeader:   "X-Edited: yes",
			RequestMethods: DefaultRequestMethods,
			MediaTypes:     []string{"application/x-java-serialized-object"},
			DumpPayloads:   true,
		},
		Application: ApplicationConfiguration{
			LogLevel:  "debug",
			ClassPath: "./lib",
			Bridge:    BasicService{Enabled: true, Addresses: []string{"localhost:8089"}},
		},
	}, cfg)

	m, err := cfg.Rewriter.Marker()
	require.NoError(t, err)
	require.Equal(t, "X-Edited", m.Name)
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	for name, data := range map[string]string{
		"unknown field": "Rewriter:\n  Marker: x\n",
		"bad marker":    "Rewriter:\n  MarkerHeader: Decoded\n",
		"nothing to do": "Rewriter:\n  RequestMethods: []\n  MediaTypes: []\n",
		"bad yaml":      "Rewriter: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, data))
			require.Error(t, err)
		})
	}
}

func TestConfigYAML(t *testing.T) {
	expected := Default()
	expected.Application.Bridge = BasicService{Addresses: []string{"localhost:8089"}}
	expected.Application.Prometheus = BasicService{Enabled: true, Addresses: []string{":2112"}}
	expected.Application.Pprof = BasicService{Addresses: []string{"localhost:2113"}}
	testserdes.MarshalUnmarshalYAML(t, &expected, new(Config))
}

func TestSampleConfig(t *testing.T) {
	cfg, err := LoadFile("../../config/jserial.yml")
	require.NoError(t, err)
	require.Equal(t, DefaultMarkerHeader, cfg.Rewriter.MarkerHeader)
}
