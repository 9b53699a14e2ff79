/*
Package rewriter converts bodies of intercepted HTTP messages between the
binary serialized object form and the editable document form.

A qualifying message is decoded into its document, marked with a header and
handed to the analyst. On the way back the marker is looked for, the
(possibly edited) document is encoded again and the marker is removed. Any
failure leaves the message exactly as it was received.
*/
package rewriter

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nspcc-dev/jserial/pkg/classpath"
	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/nspcc-dev/jserial/pkg/editdoc"
	"github.com/nspcc-dev/jserial/pkg/httpmsg"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"go.uber.org/zap"
)

// Classes is a set of classes known to the analyst, it's only used for
// diagnostics.
type Classes interface {
	Known(name string) bool
}

// Rewriter transforms single messages. It has no mutable state, so it can
// be used concurrently.
type Rewriter struct {
	marker  httpmsg.Header
	methods map[string]bool
	types   map[string]bool
	dump    bool
	log     *zap.Logger
	classes Classes
}

// New creates a Rewriter for the given configuration. log and classes can
// be nil.
func New(cfg config.Rewriter, log *zap.Logger, classes Classes) (*Rewriter, error) {
	marker, err := cfg.Marker()
	if err != nil {
		return nil, fmt.Errorf("bad marker header: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Rewriter{
		marker:  marker,
		methods: make(map[string]bool, len(cfg.RequestMethods)),
		types:   make(map[string]bool, len(cfg.MediaTypes)),
		dump:    cfg.DumpPayloads,
		log:     log,
		classes: classes,
	}
	for _, m := range cfg.RequestMethods {
		r.methods[strings.ToUpper(m)] = true
	}
	for _, t := range cfg.MediaTypes {
		r.types[strings.ToLower(t)] = true
	}
	return r, nil
}

// Marker returns the header marking editable messages.
func (r *Rewriter) Marker() httpmsg.Header {
	return r.marker
}

// qualifies checks whether the body of m is expected to be a serialized
// stream.
func (r *Rewriter) qualifies(m *httpmsg.Message, isRequest bool) bool {
	if isRequest {
		return r.methods[m.Method()]
	}
	return r.types[m.MediaType()]
}

// ToEditable replaces the body of a qualifying message with its document.
// The returned bytes are always safe to forward: the original message is
// returned along with an error if the body can't be decoded and as is if
// the message doesn't qualify.
func (r *Rewriter) ToEditable(raw []byte, isRequest bool) ([]byte, error) {
	m, err := httpmsg.Parse(raw)
	if err != nil {
		r.log.Debug("passing through", zap.Error(err))
		return raw, nil
	}
	log := r.log.With(zap.String("message", m.StartLine()))
	switch {
	case !r.qualifies(m, isRequest):
		log.Debug("not qualified")
		return raw, nil
	case m.Has(r.marker):
		log.Debug("already marked")
		return raw, nil
	case m.Chunked():
		log.Debug("chunked body is not supported")
		return raw, nil
	}
	r.dumpBody(log, "binary body", m.Body)

	off, err := objstream.Scan(m.Body)
	if err != nil {
		log.Debug("passing through", zap.Error(err))
		decodeFailures.WithLabelValues(kind(err)).Inc()
		return raw, err
	}
	s, err := objstream.Decode(m.Body[off:])
	if err != nil {
		decodeFailures.WithLabelValues(kind(err)).Inc()
		return raw, fmt.Errorf("can't decode body at offset %d: %w", off, err)
	}
	if off > 0 {
		s.Preamble = append([]byte(nil), m.Body[:off]...)
	}
	r.reportClasses(log, s)
	doc, err := editdoc.Render(s)
	if err != nil {
		decodeFailures.WithLabelValues(kind(err)).Inc()
		return raw, fmt.Errorf("can't render body: %w", err)
	}

	binLen := len(m.Body)
	m.Body = doc
	m.InsertBefore(httpmsg.ContentLength, r.marker)
	m.FixContentLength()
	decoded.Inc()
	log.Debug("decoded",
		zap.Int("binary", binLen),
		zap.Int("document", len(doc)),
		zap.Int("contents", len(s.Contents)))
	r.dumpBody(log, "document", doc)
	return m.Bytes(), nil
}

// ToWire encodes the document of a marked message back into its binary
// form and removes the marker. Unmarked messages are returned as is. If the
// document can't be parsed or encoded the original message is returned
// along with an error.
func (r *Rewriter) ToWire(raw []byte) ([]byte, error) {
	m, err := httpmsg.Parse(raw)
	if err != nil || !m.Has(r.marker) {
		return raw, nil
	}
	log := r.log.With(zap.String("message", m.StartLine()))
	r.dumpBody(log, "document", m.Body)

	s, err := editdoc.Parse(m.Body)
	if err != nil {
		encodeFailures.WithLabelValues(kind(err)).Inc()
		return raw, fmt.Errorf("can't parse document: %w", err)
	}
	body, err := objstream.Encode(s)
	if err != nil {
		encodeFailures.WithLabelValues(kind(err)).Inc()
		return raw, fmt.Errorf("can't encode document: %w", err)
	}

	m.Body = body
	m.Remove(r.marker)
	m.FixContentLength()
	encoded.Inc()
	log.Debug("encoded", zap.Int("length", len(body)))
	r.dumpBody(log, "binary body", body)
	return m.Bytes(), nil
}

func (r *Rewriter) dumpBody(log *zap.Logger, msg string, body []byte) {
	if r.dump && log.Core().Enabled(zap.DebugLevel) {
		log.Debug(msg, zap.Int("length", len(body)), zap.String("dump", hex.Dump(body)))
	}
}

func (r *Rewriter) reportClasses(log *zap.Logger, s *objstream.Stream) {
	if r.classes == nil || !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	var missing []string
	for _, name := range objstream.ClassNames(s) {
		if !classpath.IsPlatform(name) && !r.classes.Known(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) != 0 {
		log.Debug("classes missing from the class path", zap.Strings("classes", missing))
	}
}

// kind returns a short error class name used as a metric label.
func kind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{objstream.ErrMagicNotFound, "magic_not_found"},
		{objstream.ErrInvalidHeader, "invalid_header"},
		{objstream.ErrUnknownTypeCode, "unknown_type_code"},
		{objstream.ErrTruncatedStream, "truncated_stream"},
		{objstream.ErrInvalidHandleReference, "invalid_handle_reference"},
		{objstream.ErrNestingTooDeep, "nesting_too_deep"},
		{objstream.ErrDanglingReference, "dangling_reference"},
		{objstream.ErrFieldMismatch, "field_mismatch"},
		{objstream.ErrValueOutOfRange, "value_out_of_range"},
		{editdoc.ErrMalformedMarkup, "malformed_markup"},
		{editdoc.ErrUndefinedReference, "undefined_reference"},
		{editdoc.ErrTypeMismatch, "type_mismatch"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
