package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/dactilo/internal/session"
)

// Recognizer starts and stops camera recognition.
type Recognizer interface {
	Start() error
	Stop()
	SessionID() string
	Session() *session.Session
}

// SessionHandler serves /api/session.
type SessionHandler struct {
	recognizer Recognizer
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(r Recognizer) *SessionHandler {
	return &SessionHandler{recognizer: r}
}

type sessionResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	session.Status
}

// ServeHTTP routes GET /api/session, POST /api/session/start and
// POST /api/session/stop.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.status(w)
	case path == "start" && r.Method == http.MethodPost:
		h.start(w)
	case path == "stop" && r.Method == http.MethodPost:
		h.recognizer.Stop()
		h.status(w)
	case path == "" || path == "start" || path == "stop":
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) status(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: h.recognizer.SessionID(),
		Status:    h.recognizer.Session().Status(),
	})
}

func (h *SessionHandler) start(w http.ResponseWriter) {
	if err := h.recognizer.Start(); err != nil {
		if errors.Is(err, session.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "Session already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start session: "+err.Error())
		return
	}
	h.status(w)
}
