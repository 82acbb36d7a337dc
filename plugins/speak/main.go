// Package main provides a text-to-speech plugin.
// It speaks recognized words with say on macOS or espeak on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
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

// Config selects the voice and speaking rate in words per minute.
type Config struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"`
	// Phrases replaces shortcut labels with spoken text, e.g. {"OK": "de acuerdo"}.
	Phrases map[string]string `json:"phrases"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	if req.Action != "say" {
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
		return
	}
	writeResponse(say(req))
}

func say(req Request) error {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	text := req.Text
	if phrase, ok := cfg.Phrases[text]; ok {
		text = phrase
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	text = strings.ToLower(text)

	name, args, err := command(runtime.GOOS, cfg, text)
	if err != nil {
		return err
	}
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func command(goos string, cfg Config, text string) (string, []string, error) {
	var args []string
	switch goos {
	case "darwin":
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(cfg.Rate))
		}
		return "say", append(args, text), nil
	case "linux":
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-s", strconv.Itoa(cfg.Rate))
		}
		return "espeak", append(args, "--", text), nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
