// Package plugin discovers and runs the external programs that act on
// recognized words and shortcuts.
package plugin

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Validate checks the fields discovery relies on. The executable must live
// inside the plugin directory.
func (m Manifest) Validate() error {
	switch {
	case m.Name == "":
		return errors.New("name is required")
	case m.Executable == "":
		return errors.New("executable is required")
	case filepath.IsAbs(m.Executable) || strings.HasPrefix(filepath.Clean(m.Executable), ".."):
		return errors.New("executable must be inside the plugin directory")
	case len(m.Actions) == 0:
		return errors.New("at least one action is required")
	}
	return nil
}

// HasAction reports whether the manifest declares action.
func (m Manifest) HasAction(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written as JSON to the plugin's stdin.
type Request struct {
	Action    string          `json:"action"`
	Kind      string          `json:"kind"`
	Text      string          `json:"text"`
	SessionID string          `json:"sessionId,omitempty"`
	At        time.Time       `json:"at"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
