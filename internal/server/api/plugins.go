package api

import (
	"net/http"

	"github.com/ayusman/dactilo/internal/plugin"
)

// PluginLister lists discovered plugins.
type PluginLister interface {
	List() []*plugin.Plugin
}

// PluginsHandler serves GET /api/plugins.
type PluginsHandler struct {
	plugins PluginLister
}

// NewPluginsHandler creates a PluginsHandler.
func NewPluginsHandler(p PluginLister) *PluginsHandler {
	return &PluginsHandler{plugins: p}
}

type pluginsResponse struct {
	Plugins []plugin.Manifest `json:"plugins"`
}

// ServeHTTP returns the manifests of all discovered plugins.
func (h *PluginsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := pluginsResponse{Plugins: []plugin.Manifest{}}
	for _, p := range h.plugins.List() {
		resp.Plugins = append(resp.Plugins, p.Manifest)
	}
	writeJSON(w, http.StatusOK, resp)
}
