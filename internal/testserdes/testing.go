package testserdes

import (
	"testing"

	"github.com/nspcc-dev/jserial/pkg/editdoc"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// MarshalUnmarshalYAML checks if expected stays the same after
// marshal/unmarshal via YAML.
func MarshalUnmarshalYAML(t *testing.T, expected, actual any) {
	data, err := yaml.Marshal(expected)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, actual))
	require.Equal(t, expected, actual)
}

// DecodeEncode decodes data, checks that encoding the result decodes to the
// same graph and returns it.
func DecodeEncode(t *testing.T, data []byte) *objstream.Stream {
	expected, err := objstream.Decode(data)
	require.NoError(t, err)
	raw, err := objstream.Encode(expected)
	require.NoError(t, err)
	actual, err := objstream.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, expected, actual)
	return expected
}

// RenderParse checks if expected stays the same after rendering it into
// a document and parsing it back. The document is returned.
func RenderParse(t *testing.T, expected *objstream.Stream) []byte {
	doc, err := editdoc.Render(expected)
	require.NoError(t, err)
	actual, err := editdoc.Parse(doc)
	require.NoError(t, err, string(doc))
	require.Equal(t, expected, actual)
	return doc
}

// Wire converts data to its document and back, returning the bytes the
// edited stream would be sent as.
func Wire(t *testing.T, data []byte, edit func(doc []byte) []byte) []byte {
	s, err := objstream.Decode(data)
	require.NoError(t, err)
	doc := RenderParse(t, s)
	if edit != nil {
		doc = edit(doc)
	}
	parsed, err := editdoc.Parse(doc)
	require.NoError(t, err)
	res, err := objstream.Encode(parsed)
	require.NoError(t, err)
	return res
}
