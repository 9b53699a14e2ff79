package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/nspcc-dev/jserial/cli/options"
	"github.com/nspcc-dev/jserial/pkg/editdoc"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/urfave/cli"
)

// NewCommands returns stream conversion commands.
func NewCommands() []cli.Command {
	fileFlags := []cli.Flag{options.Input, options.Output}
	return []cli.Command{
		{
			Name:      "decode",
			Usage:     "Convert a serialized stream into its document",
			UsageText: "jserial decode [--in <file>] [--out <file>]",
			Description: `Reads a serialized object stream and writes its XML document. Bytes
   preceding the stream magic are kept in the document and written back by
   the encode command.`,
			Action: decode,
			Flags:  fileFlags,
		},
		{
			Name:      "encode",
			Usage:     "Convert a document into a serialized stream",
			UsageText: "jserial encode [--in <file>] [--out <file>]",
			Action:    encode,
			Flags:     fileFlags,
		},
		{
			Name:      "scan",
			Usage:     "Show the stream magic offset and stream contents summary",
			UsageText: "jserial scan [--in <file>]",
			Action:    scan,
			Flags:     []cli.Flag{options.Input},
		},
		{
			Name:      "check",
			Usage:     "Check that a stream survives document conversion",
			UsageText: "jserial check [--in <file>]",
			Description: `Decodes the stream, renders it, parses and encodes the document, then
   decodes and renders the result again. Differences between the two
   documents are printed as a unified diff and make the command fail.`,
			Action: check,
			Flags:  []cli.Flag{options.Input},
		},
	}
}

// decodeStream finds the stream in data and decodes it keeping the preamble.
func decodeStream(data []byte) (*objstream.Stream, int, error) {
	off, err := objstream.Scan(data)
	if err != nil {
		return nil, -1, err
	}
	s, err := objstream.Decode(data[off:])
	if err != nil {
		return nil, off, fmt.Errorf("offset %d: %w", off, err)
	}
	if off > 0 {
		s.Preamble = append([]byte(nil), data[:off]...)
	}
	return s, off, nil
}

func decode(ctx *cli.Context) error {
	data, err := options.ReadInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	s, _, err := decodeStream(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	doc, err := editdoc.Render(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := options.WriteOutput(ctx, doc); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func encode(ctx *cli.Context) error {
	doc, err := options.ReadInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	s, err := editdoc.Parse(doc)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	data, err := objstream.Encode(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := options.WriteOutput(ctx, data); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func scan(ctx *cli.Context) error {
	data, err := options.ReadInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	s, off, err := decodeStream(data)
	if off < 0 {
		return cli.NewExitError(err, 1)
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "magic at offset %d\n", off)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(w, "version %d, %d content(s)\n", s.Version, len(s.Contents))
	for i, n := range s.Contents {
		fmt.Fprintf(w, "  %d: %s\n", i, describe(n))
	}
	if names := objstream.ClassNames(s); len(names) != 0 {
		fmt.Fprintln(w, "classes:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	return nil
}

// describe returns a one-line summary of a top-level node.
func describe(n objstream.Node) string {
	switch n := n.(type) {
	case *objstream.Object:
		return fmt.Sprintf("%s %s", n.Kind(), n.Handle)
	case *objstream.Array:
		return fmt.Sprintf("%s %s of %d element(s)", n.Kind(), n.Handle, len(n.Elements))
	case *objstream.String:
		return fmt.Sprintf("%s %s %q", n.Kind(), n.Handle, n.Value)
	case *objstream.Ref:
		return fmt.Sprintf("%s to %s", n.Kind(), n.Handle)
	case *objstream.BlockData:
		return fmt.Sprintf("%s of %d byte(s)", n.Kind(), len(n.Data))
	default:
		return n.Kind().String()
	}
}

// errUnstable is returned by check for streams changing after conversion.
var errUnstable = errors.New("document changed after re-encoding")

func check(ctx *cli.Context) error {
	data, err := options.ReadInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	s, _, err := decodeStream(data)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	first, err := editdoc.Render(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	parsed, err := editdoc.Parse(first)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("rendered document: %w", err), 1)
	}
	encoded, err := objstream.Encode(parsed)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("rendered document: %w", err), 1)
	}
	s2, _, err := decodeStream(encoded)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("re-encoded stream: %w", err), 1)
	}
	second, err := editdoc.Render(s2)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	w := ctx.App.Writer
	if !bytes.Equal(first, second) {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(first)),
			B:        difflib.SplitLines(string(second)),
			FromFile: "decoded",
			ToFile:   "re-encoded",
			Context:  3,
		})
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		fmt.Fprint(w, diff)
		return cli.NewExitError(errUnstable, 1)
	}
	if bytes.Equal(encoded, data) {
		fmt.Fprintln(w, "OK, re-encoded stream is identical")
	} else {
		fmt.Fprintf(w, "OK, re-encoded stream is equivalent (%d bytes, was %d)\n", len(encoded), len(data))
	}
	return nil
}
