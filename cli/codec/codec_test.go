package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/jserial/internal/fixtures"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	out := new(bytes.Buffer)
	app := cli.NewApp()
	app.Name = "jserial"
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = NewCommands()
	if stdin != nil {
		app.Metadata = map[string]any{"stdin": bytes.NewReader(stdin)}
	}
	err := app.Run(append([]string{"jserial"}, args...))
	return out.String(), err
}

func TestDecodeEncode(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "demo.bin")
	doc := filepath.Join(dir, "demo.xml")
	data := append([]byte("prefix"), fixtures.Demo('I', 42)...)
	require.NoError(t, os.WriteFile(bin, data, 0o644))

	_, err := run(t, nil, "decode", "--in", bin, "--out", doc)
	require.NoError(t, err)
	rendered, err := os.ReadFile(doc)
	require.NoError(t, err)
	require.Contains(t, string(rendered), `<int field="count">42</int>`)
	require.Contains(t, string(rendered), `preamble="707265666978"`)

	edited := bytes.Replace(rendered, []byte(">42<"), []byte(">7<"), 1)
	out, err := run(t, edited, "encode")
	require.NoError(t, err)
	require.Equal(t, string(append([]byte("prefix"), fixtures.Demo('I', 7)...)), out)
}

func TestCodecErrors(t *testing.T) {
	_, err := run(t, []byte("nothing here"), "decode")
	require.ErrorContains(t, err, objstream.ErrMagicNotFound.Error())

	_, err = run(t, []byte("<stream"), "encode")
	require.Error(t, err)

	_, err = run(t, nil, "decode", "--in", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestScan(t *testing.T) {
	out, err := run(t, append([]byte{1, 2, 3}, fixtures.Arrays()...), "scan")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "magic at offset 3\nversion 5, 3 content(s)\n"), out)
	require.Contains(t, out, "  0: Array 0x7e0001 of 3 element(s)\n")
	require.Contains(t, out, "classes:\n  [I\n  [B\n  [Ljava.lang.String;\n")

	out, err = run(t, fixtures.Demo('I', 1)[:10], "scan")
	require.ErrorContains(t, err, objstream.ErrTruncatedStream.Error())
	require.Contains(t, out, "magic at offset 0")

	_, err = run(t, []byte{0xAC}, "scan")
	require.ErrorContains(t, err, objstream.ErrMagicNotFound.Error())
}

func TestCheck(t *testing.T) {
	out, err := run(t, fixtures.ParentCycle(), "check")
	require.NoError(t, err)
	require.Equal(t, "OK, re-encoded stream is identical\n", out)

	out, err = run(t, fixtures.Mixed(), "check")
	require.NoError(t, err)
	require.Contains(t, out, "OK, re-encoded stream is equivalent")

	_, err = run(t, []byte{0xAC, 0xED, 0x00, 0x05, 0x71}, "check")
	require.ErrorContains(t, err, objstream.ErrTruncatedStream.Error())
}
