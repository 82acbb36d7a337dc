package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/gesture"
	"github.com/ayusman/dactilo/internal/session"
)

// Dataset is the training-set surface of a recognition session.
type Dataset interface {
	Counts() map[string]int
	AddExample(label string, frame *detector.HandLandmarks) error
	Record(label string, n int) (gesture.Progress, error)
	Recording() (gesture.Progress, bool)
	CancelRecording()
	Save() error
	Load() error
	Reset() error
}

// DatasetHandler serves /api/dataset.
type DatasetHandler struct {
	dataset Dataset
}

// NewDatasetHandler creates a DatasetHandler.
func NewDatasetHandler(d Dataset) *DatasetHandler {
	return &DatasetHandler{dataset: d}
}

type datasetResponse struct {
	Samples   int               `json:"samples"`
	Counts    map[string]int    `json:"counts"`
	Recording *gesture.Progress `json:"recording,omitempty"`
}

type examplesRequest struct {
	Label    string                   `json:"label"`
	Examples []detector.HandLandmarks `json:"examples"`
}

type recordRequest struct {
	Label   string `json:"label"`
	Samples int    `json:"samples"`
}

// ServeHTTP routes the dataset endpoints:
//
//	GET    /api/dataset          counts per label
//	POST   /api/dataset          add landmark examples for a label
//	DELETE /api/dataset          clear memory and storage
//	POST   /api/dataset/record   capture the next N hand frames for a label
//	DELETE /api/dataset/record   cancel the capture
//	POST   /api/dataset/save     persist
//	POST   /api/dataset/load     reload from storage
func (h *DatasetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/dataset"), "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w)
		case http.MethodPost:
			h.addExamples(w, r)
		case http.MethodDelete:
			h.persist(w, h.dataset.Reset)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case "record":
		switch r.Method {
		case http.MethodPost:
			h.record(w, r)
		case http.MethodDelete:
			h.dataset.CancelRecording()
			h.get(w)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case "save", "load":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if path == "save" {
			h.persist(w, h.dataset.Save)
		} else {
			h.persist(w, h.dataset.Load)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *DatasetHandler) get(w http.ResponseWriter) {
	counts := h.dataset.Counts()
	resp := datasetResponse{Counts: counts}
	for _, n := range counts {
		resp.Samples += n
	}
	if p, ok := h.dataset.Recording(); ok {
		resp.Recording = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DatasetHandler) addExamples(w http.ResponseWriter, r *http.Request) {
	var req examplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Examples) == 0 {
		writeError(w, http.StatusBadRequest, "examples are required")
		return
	}

	// Validate everything first so a bad frame adds nothing
	for i := range req.Examples {
		if err := req.Examples[i].Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("example %d: %v", i, err))
			return
		}
	}
	for i := range req.Examples {
		if err := h.dataset.AddExample(req.Label, &req.Examples[i]); err != nil {
			if errors.Is(err, gesture.ErrEmptyLabel) {
				writeError(w, http.StatusBadRequest, "label is required")
				return
			}
			writeError(w, http.StatusBadRequest, fmt.Sprintf("example %d: %v", i, err))
			return
		}
	}
	h.get(w)
}

func (h *DatasetHandler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	progress, err := h.dataset.Record(req.Label, req.Samples)
	switch {
	case errors.Is(err, gesture.ErrEmptyLabel):
		writeError(w, http.StatusBadRequest, "label is required")
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusConflict, "Start a session before recording")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to start recording")
	default:
		writeJSON(w, http.StatusAccepted, progress)
	}
}

func (h *DatasetHandler) persist(w http.ResponseWriter, op func() error) {
	if err := op(); err != nil {
		if errors.Is(err, session.ErrNoStore) {
			writeError(w, http.StatusServiceUnavailable, "No dataset storage configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.get(w)
}
