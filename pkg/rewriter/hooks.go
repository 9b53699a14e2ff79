package rewriter

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"go.uber.org/zap"
)

// HookFunc handles one message and returns the bytes to forward.
type HookFunc func(msg []byte, isRequest bool) []byte

// Host is an intercepting proxy able to call back for every message.
type Host interface {
	// RegisterMessageHooks installs callbacks for messages arriving at the
	// analyst and for messages leaving for the peer.
	RegisterMessageHooks(intercepted, forwarding HookFunc) error
}

// Hooks adapts a Rewriter to a Host. Hooks never fail: every error is
// logged and turned into passing the message through.
type Hooks struct {
	rw  *Rewriter
	log *zap.Logger
}

// NewHooks creates Hooks for the Rewriter.
func NewHooks(rw *Rewriter, log *zap.Logger) *Hooks {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hooks{rw: rw, log: log}
}

// Register installs Intercepted and Forwarding into the host.
func (h *Hooks) Register(host Host) error {
	if err := host.RegisterMessageHooks(h.Intercepted, h.Forwarding); err != nil {
		return fmt.Errorf("can't register hooks: %w", err)
	}
	return nil
}

// Intercepted converts msg into its editable form if it qualifies.
func (h *Hooks) Intercepted(msg []byte, isRequest bool) []byte {
	return h.call("intercepted", msg, isRequest, func() ([]byte, error) {
		return h.rw.ToEditable(msg, isRequest)
	})
}

// Forwarding converts msg back into its wire form if it's marked.
func (h *Hooks) Forwarding(msg []byte, isRequest bool) []byte {
	return h.call("forwarding", msg, isRequest, func() ([]byte, error) {
		return h.rw.ToWire(msg)
	})
}

func (h *Hooks) call(hook string, msg []byte, isRequest bool, f func() ([]byte, error)) (res []byte) {
	log := h.log.With(
		zap.String("hook", hook),
		zap.String("id", uuid.NewString()),
		zap.Bool("request", isRequest))
	defer func() {
		if r := recover(); r != nil {
			hookPanics.Inc()
			log.Error("panic in message hook, passing through", zap.Any("panic", r), zap.Stack("stack"))
			res = msg
		}
	}()

	res, err := f()
	switch {
	case err == nil:
		log.Debug("message handled",
			zap.Int("length", len(msg)),
			zap.Bool("changed", !bytes.Equal(res, msg)))
	case errors.Is(err, objstream.ErrMagicNotFound):
		// Logged by the rewriter, bodies without streams are common.
	default:
		log.Warn("passing message through", zap.Error(err))
	}
	return res
}
