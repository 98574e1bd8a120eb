// Package web serves the browser frontend. The browser records with MediaRecorder and streams
// fragments over a websocket; each connection gets its own practice session.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"accentcoach/internal/domain"
	"accentcoach/internal/logging"
	"accentcoach/internal/pitch"
	"accentcoach/internal/ports"
	"accentcoach/internal/usecase"
)

//go:embed static
var staticFiles embed.FS

// ControllerFactory builds a session recording through device and probing encodings with prober.
type ControllerFactory func(events ports.EventSink, device ports.AudioCapture, prober ports.EncodingProber) (*usecase.SessionController, error)

type Server struct {
	words         []domain.WordItem
	newController ControllerFactory
	logger        *slog.Logger
	upgrader      websocket.Upgrader

	mu      sync.Mutex
	conns   map[*connection]struct{}
	closing bool
	active  sync.WaitGroup
}

func NewServer(words []domain.WordItem, factory ControllerFactory, logger *slog.Logger) *Server {
	return &Server{
		words:         words,
		newController: factory,
		logger:        logging.OrDiscard(logger),
		conns:         make(map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /api/words", s.handleWords)
	mux.HandleFunc("GET /ws", s.handleSocket)
	return mux
}

type wordView struct {
	domain.WordItem
	Diagram pitch.Diagram `json:"diagram"`
}

func (s *Server) handleWords(w http.ResponseWriter, _ *http.Request) {
	views := make([]wordView, 0, len(s.words))
	for _, word := range s.words {
		views = append(views, wordView{WordItem: word, Diagram: pitch.Render(word.Pattern, word.Reading)})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.logger.Warn("failed to write word list", "error", err)
	}
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := newConnection(ws, s.logger.With("remote", r.RemoteAddr))
	if !s.track(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeTimeout))
		_ = ws.Close()
		return
	}
	defer s.untrack(conn)

	if err := conn.readHello(); err != nil {
		s.logger.Debug("websocket handshake failed", "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "first frame must be hello"), time.Now().Add(writeTimeout))
		_ = ws.Close()
		return
	}

	controller, err := s.newController(conn, conn.device, conn.device)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		_ = ws.WriteJSON(serverMessage{Type: evtError, Code: string(domain.ErrorCodeStartup), Message: err.Error()})
		_ = ws.Close()
		return
	}
	conn.controller = controller

	s.logger.Info("session opened", "remote", r.RemoteAddr)
	conn.run(r.Context())
	s.logger.Info("session closed", "remote", r.RemoteAddr)
}

// Close ends every open session and waits for their teardown, which cancels pending grading.
// Sessions opened afterwards are refused.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for conn := range s.conns {
		conn.shutdown()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(conn *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.active.Add(1)
	return true
}

func (s *Server) untrack(conn *connection) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.active.Done()
}
