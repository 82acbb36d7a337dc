package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestBindingHandler_Workflow(t *testing.T) {
	h := NewBindingHandler(newTestStore(t))

	rec := do(t, h, http.MethodPost, "/api/bindings",
		`{"kind":"word","trigger":" hola ","plugin_name":"speak","action_name":"say","config":{"voice":"es"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var created bindingResponse
	json.NewDecoder(rec.Body).Decode(&created)
	if created.ID == "" || created.Trigger != "HOLA" || !created.Enabled {
		t.Errorf("created = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/bindings", "")
	var list listBindingsResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Bindings) != 1 || string(list.Bindings[0].Config) != `{"voice":"es"}` {
		t.Errorf("list = %+v", list)
	}

	rec = do(t, h, http.MethodPut, "/api/bindings/"+created.ID, `{"enabled":false,"trigger":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated bindingResponse
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated.Enabled || updated.Trigger != "" || updated.PluginName != "speak" {
		t.Errorf("updated = %+v", updated)
	}

	if rec := do(t, h, http.MethodGet, "/api/bindings/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/bindings/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/bindings/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestBindingHandler_Validation(t *testing.T) {
	h := NewBindingHandler(newTestStore(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid json", http.MethodPost, "/api/bindings", `{`, http.StatusBadRequest},
		{"bad kind", http.MethodPost, "/api/bindings", `{"kind":"gesture","plugin_name":"p","action_name":"a"}`, http.StatusBadRequest},
		{"missing plugin", http.MethodPost, "/api/bindings", `{"kind":"word","action_name":"a"}`, http.StatusBadRequest},
		{"missing action", http.MethodPost, "/api/bindings", `{"kind":"word","plugin_name":"p"}`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/bindings/nope", `{}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bindings/nope", "", http.StatusNotFound},
		{"collection put", http.MethodPut, "/api/bindings", "", http.StatusMethodNotAllowed},
		{"item post", http.MethodPost, "/api/bindings/x", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
