package app

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	config.Version = "0.1.0-test"
	ctl := New()
	out := new(bytes.Buffer)
	ctl.Writer = out
	require.NoError(t, ctl.Run([]string{"jserial", "--version"}))
	require.Contains(t, out.String(), "jserial\nVersion: 0.1.0-test\nGoVersion: ")

	for _, name := range []string{"decode", "encode", "scan", "check", "bridge", "shell"} {
		require.NotNil(t, ctl.Command(name), name)
	}
}
