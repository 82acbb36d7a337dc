// Package main provides a keyboard plugin.
// It types recognized words and sends shortcut keystrokes via AppleScript on
// macOS or xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Kind   string          `json:"kind"`
	Text   string          `json:"text"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// TypeConfig controls how a word is typed.
type TypeConfig struct {
	Suffix    string `json:"suffix"`
	Lowercase bool   `json:"lowercase"`
}

// KeystrokeConfig defines the key sent by the keystroke action.
type KeystrokeConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// appleModifiers maps user-friendly modifier names to AppleScript equivalents.
var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// xdoModifiers maps modifier names to xdotool key names.
var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	var err error
	switch req.Action {
	case "type":
		err = handleType(req)
	case "keystroke":
		err = handleKeystroke(req.Config)
	default:
		err = fmt.Errorf("unknown action: %s", req.Action)
	}
	if err != nil {
		err = fmt.Errorf("action %s failed: %w", req.Action, err)
	}
	writeResponse(err)
}

func handleType(req Request) error {
	cfg := TypeConfig{Suffix: " "}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if req.Text == "" {
		return fmt.Errorf("text is required")
	}

	text := req.Text
	if cfg.Lowercase {
		text = strings.ToLower(text)
	}
	text += cfg.Suffix

	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", fmt.Sprintf(`tell application "System Events" to keystroke %q`, text))
	case "linux":
		return run("xdotool", "type", "--", text)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func handleKeystroke(config json.RawMessage) error {
	var cfg KeystrokeConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Key == "" {
		return fmt.Errorf("key is required")
	}

	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", buildKeystrokeScript(cfg.Key, cfg.Modifiers))
	case "linux":
		return run("xdotool", "key", buildXdoKey(cfg.Key, cfg.Modifiers))
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	var mods []string
	for _, mod := range modifiers {
		if m, ok := appleModifiers[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}

	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke %q`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke %q using {%s}`, key, strings.Join(mods, ", "))
}

// buildXdoKey generates an xdotool key chord such as "ctrl+shift+t".
func buildXdoKey(key string, modifiers []string) string {
	var parts []string
	for _, mod := range modifiers {
		if m, ok := xdoModifiers[strings.ToLower(mod)]; ok {
			parts = append(parts, m)
		}
	}
	return strings.Join(append(parts, key), "+")
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
