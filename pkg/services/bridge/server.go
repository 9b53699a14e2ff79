/*
Package bridge exposes message hooks to an intercepting proxy running in
another process. A proxy extension posts every message it sees and forwards
whatever comes back.

	POST /intercept?direction=request|response  message arriving at the analyst
	POST /forward?direction=request|response    message leaving for the peer
	GET  /ws                                    the same over a WebSocket

HTTP responses carry the resulting message as the body and report whether it
was changed in the X-Jserial-Changed header. WebSocket frames are JSON Frame
objects, every request frame gets a response frame with the same ID.
*/
package bridge

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/jserial/pkg/config"
	jio "github.com/nspcc-dev/jserial/pkg/io"
	"github.com/nspcc-dev/jserial/pkg/rewriter"
	"github.com/nspcc-dev/jserial/pkg/services/metrics"
	"go.uber.org/zap"
)

// Hook names used in frames and logs.
const (
	HookIntercepted = "intercepted"
	HookForwarding  = "forwarding"
)

// ChangedHeader reports whether the returned message differs from the
// posted one.
const ChangedHeader = "X-Jserial-Changed"

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// maxMessageSize limits posted messages, frames get some room for
	// base64 and JSON overhead.
	maxMessageSize = jio.MaxArraySize
	wsReadLimit    = maxMessageSize/3*4 + 4096
)

// Frame is a WebSocket message.
type Frame struct {
	ID      string `json:"id"`
	Hook    string `json:"hook"`
	Request bool   `json:"request"`
	Message []byte `json:"message"`
	Changed bool   `json:"changed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server is the bridge service, it implements rewriter.Host.
type Server struct {
	http     *metrics.Service
	log      *zap.Logger
	upgrader websocket.Upgrader
	shutdown chan struct{}

	lock        sync.RWMutex
	intercepted rewriter.HookFunc
	forwarding  rewriter.HookFunc
}

var errNoHooks = errors.New("hooks are not registered")

// New creates a bridge listening on the configured addresses. Messages are
// handled by the hooks registered with RegisterMessageHooks.
func New(cfg config.BasicService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:      log.With(zap.String("service", "Bridge")),
		shutdown: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/intercept", s.handleHTTP(HookIntercepted))
	mux.HandleFunc("/forward", s.handleHTTP(HookForwarding))
	mux.HandleFunc("/ws", s.handleWS)
	s.http = metrics.NewHandlerService("Bridge", cfg, mux, log)
	return s
}

// RegisterMessageHooks implements rewriter.Host interface.
func (s *Server) RegisterMessageHooks(intercepted, forwarding rewriter.HookFunc) error {
	if intercepted == nil || forwarding == nil {
		return errors.New("nil hook")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.intercepted != nil {
		return errors.New("hooks are already registered")
	}
	s.intercepted, s.forwarding = intercepted, forwarding
	return nil
}

// Start binds configured addresses and starts serving.
func (s *Server) Start() error {
	return s.http.Start()
}

// Addresses returns the addresses the service listens on.
func (s *Server) Addresses() []string {
	return s.http.Addresses()
}

// ShutDown stops the service and closes WebSocket connections.
func (s *Server) ShutDown() {
	select {
	case <-s.shutdown:
		return
	default:
	}
	close(s.shutdown)
	s.http.ShutDown()
}

// hook returns the function for the named hook.
func (s *Server) hook(name string) (rewriter.HookFunc, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.intercepted == nil {
		return nil, errNoHooks
	}
	switch name {
	case HookIntercepted:
		return s.intercepted, nil
	case HookForwarding:
		return s.forwarding, nil
	default:
		return nil, errors.New("unknown hook " + strconv.Quote(name))
	}
}

func parseDirection(v string) (bool, error) {
	switch v {
	case "request":
		return true, nil
	case "response":
		return false, nil
	default:
		return false, errors.New("direction must be 'request' or 'response'")
	}
}

func (s *Server) handleHTTP(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "invalid method '"+r.Method+"', please retry with 'POST'", http.StatusMethodNotAllowed)
			return
		}
		isRequest, err := parseDirection(r.URL.Query().Get("direction"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := s.hook(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		msg, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
		if err != nil {
			var (
				code    = http.StatusBadRequest
				tooLong *http.MaxBytesError
			)
			if errors.As(err, &tooLong) {
				code = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), code)
			return
		}
		res := f(msg, isRequest)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set(ChangedHeader, strconv.FormatBool(!bytes.Equal(res, msg)))
		w.Header().Set("Content-Length", strconv.Itoa(len(res)))
		if _, err := w.Write(res); err != nil {
			s.log.Debug("can't write response", zap.Error(err))
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket connection upgrade failed", zap.Error(err))
		return
	}
	resChan := make(chan Frame)
	writerDone := make(chan struct{})
	go s.handleWsWrites(ws, resChan, writerDone)
	s.handleWsReads(ws, resChan, writerDone)
}

// handleWsWrites sends frames from resChan and pings, writerDone is closed
// on exit.
func (s *Server) handleWsWrites(ws *websocket.Conn, resChan <-chan Frame, writerDone chan<- struct{}) {
	defer close(writerDone)
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case res, ok := <-resChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteJSON(res); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
}

// handleWsReads handles incoming frames until the connection fails or the
// writer is gone.
func (s *Server) handleWsReads(ws *websocket.Conn, resChan chan<- Frame, writerDone <-chan struct{}) {
	ws.SetReadLimit(wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
requestloop:
	for err == nil {
		var req Frame
		if err := ws.ReadJSON(&req); err != nil {
			break
		}
		res := s.handleFrame(req)
		select {
		case <-s.shutdown:
			break requestloop
		case <-writerDone:
			break requestloop
		case resChan <- res:
		}
	}
	close(resChan)
	ws.Close()
}

func (s *Server) handleFrame(req Frame) Frame {
	res := Frame{ID: req.ID, Hook: req.Hook, Request: req.Request}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	f, err := s.hook(req.Hook)
	if err != nil {
		res.Error = err.Error()
		res.Message = req.Message
		return res
	}
	res.Message = f(req.Message, req.Request)
	res.Changed = !bytes.Equal(res.Message, req.Message)
	return res
}
