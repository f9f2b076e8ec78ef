package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"danmakuflow/internal/danmaku"
	"danmakuflow/internal/engine"
	"danmakuflow/internal/hub"
	"danmakuflow/internal/util"
)

// Controller is the engine surface the HTTP API drives.
type Controller interface {
	Toggle()
	OnDelayAdjust(seconds string) error
	OnSpeedAdjust(factor string) error
	OnFilterSourceOverride(csv string)
	OnSeek()
	Reload()
	Status() engine.Status
}

// DefaultFrameInterval caps how often frames are mirrored to viewers.
const DefaultFrameInterval = 33 * time.Millisecond

type Server struct {
	mux     *http.ServeMux
	ctl     Controller
	hub     *hub.Hub
	session string
	log     *slog.Logger

	frameEvery time.Duration
	mu         sync.Mutex
	lastFrame  time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSession fixes the session id instead of generating one.
func WithSession(id string) Option {
	return func(s *Server) { s.session = id }
}

// WithFrameInterval sets the minimum gap between mirrored frames.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Server) { s.frameEvery = d }
}

func NewServer(ctl Controller, opts ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		ctl:        ctl,
		log:        slog.Default(),
		frameEvery: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == "" {
		s.session = util.NewSessionID(10)
	}
	s.log = s.log.With("component", "http")
	s.hub = hub.NewHub(s.handleViewerMessage)

	// Routes
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/session", s.handleSession)
	s.mux.HandleFunc("/qr", s.handleQR)
	s.mux.HandleFunc("/ws/", s.handleWS)
	s.mux.HandleFunc("/overlay/", s.handleOverlay)
	s.mux.HandleFunc("/admin/", s.handleAdmin)
	s.mux.HandleFunc("/sessions/", s.handleSessionSubroutes)
	return s
}

func (s *Server) Handler() http.Handler { return util.Logging(s.log, s.mux) }

// Session is the id that overlay, websocket and control URLs carry.
func (s *Server) Session() string { return s.session }

// Run serves the viewer hub until ctx is done.
func (s *Server) Run(ctx context.Context) { s.hub.Run(ctx) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	engine.Status
	Viewers int `json:"viewers"`
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: s.ctl.Status(), Viewers: s.hub.Clients()})
}

func (s *Server) overlayURL(r *http.Request) string {
	return util.BaseURL(r) + "/overlay/" + s.session
}

// GET /session -> { sessionId, overlayUrl, adminUrl, qrPngBase64 }
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	base := util.BaseURL(r)
	overlayURL := s.overlayURL(r)
	adminURL := base + "/admin/" + s.session

	// QR for the overlay, so a second screen can join
	png, err := qrcode.Encode(overlayURL, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate QR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId":   s.session,
		"overlayUrl":  overlayURL,
		"adminUrl":    adminURL,
		"qrPngBase64": base64.StdEncoding.EncodeToString(png),
	})
}

// GET /qr -> PNG of the overlay URL
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	png, err := qrcode.Encode(s.overlayURL(r), qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate QR", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// isSession reports whether path minus prefix is this session's id.
func (s *Server) isSession(path, prefix string) bool {
	return strings.TrimPrefix(path, prefix) == s.session
}

type controlReq struct {
	Value string `json:"value"`
}

// --- Session subroutes ---
// POST /sessions/{id}/{toggle|delay|speed|filter-source|seek|reload}
func (s *Server) handleSessionSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	if parts[0] != s.session {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req controlReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	action := parts[1]
	ok, err := s.control(action, req.Value)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.log.Info("control", "action", action, "value", req.Value, "remote", util.ClientIP(r))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, danmaku.ErrArgument) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: s.ctl.Status(), Viewers: s.hub.Clients()})
}

// control runs one named action and reports whether the name is known.
func (s *Server) control(action, value string) (bool, error) {
	switch action {
	case "toggle":
		s.ctl.Toggle()
	case "delay":
		return true, s.ctl.OnDelayAdjust(value)
	case "speed":
		return true, s.ctl.OnSpeedAdjust(value)
	case "filter-source":
		s.ctl.OnFilterSourceOverride(value)
	case "seek":
		s.ctl.OnSeek()
	case "reload":
		s.ctl.Reload()
	default:
		return false, nil
	}
	return true, nil
}

// viewerMessage is what the overlay page may send back over its socket.
// The overlay URL is shared by QR code, so viewers only get read access:
// controls go through the session's POST routes.
type viewerMessage struct {
	Type string `json:"type"`
}

type viewerStatus struct {
	Type string `json:"type"`
	statusResponse
}

func (s *Server) handleViewerMessage(b []byte) {
	var msg viewerMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		s.log.Debug("ignoring viewer message", "error", err)
		return
	}
	if msg.Type != "status" {
		s.log.Debug("ignoring viewer message", "type", msg.Type)
		return
	}
	out, err := json.Marshal(viewerStatus{
		Type:           "status",
		statusResponse: statusResponse{Status: s.ctl.Status(), Viewers: s.hub.Clients()},
	})
	if err != nil {
		s.log.Warn("failed to encode status", "error", err)
		return
	}
	s.hub.Broadcast(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
