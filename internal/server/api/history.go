package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/dactilo/internal/store"
)

// HistoryHandler serves GET /api/history.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type historyEntryResponse struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type historyResponse struct {
	Entries []historyEntryResponse `json:"entries"`
}

// ServeHTTP lists history entries, newest first. Query parameters kind,
// session and limit narrow the listing; DELETE clears it.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		if err := h.store.History().Clear(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to clear history")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.HistoryFilter{
		Kind:      q.Get("kind"),
		SessionID: q.Get("session"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	entries, err := h.store.History().List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	resp := historyResponse{Entries: make([]historyEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, historyEntryResponse{
			ID:        e.ID,
			SessionID: e.SessionID,
			Kind:      e.Kind,
			Text:      e.Text,
			CreatedAt: formatTime(e.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
