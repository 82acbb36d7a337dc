package main

import "testing"

func TestBuildKeystrokeScript(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		modifiers []string
		want      string
	}{
		{"plain", "a", nil, `tell application "System Events" to keystroke "a"`},
		{"modifiers", "t", []string{"cmd", "Shift"}, `tell application "System Events" to keystroke "t" using {command down, shift down}`},
		{"unknown modifier", "a", []string{"hyper"}, `tell application "System Events" to keystroke "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildKeystrokeScript(tt.key, tt.modifiers); got != tt.want {
				t.Errorf("buildKeystrokeScript() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildXdoKey(t *testing.T) {
	if got := buildXdoKey("t", []string{"ctrl", "shift"}); got != "ctrl+shift+t" {
		t.Errorf("buildXdoKey() = %q", got)
	}
	if got := buildXdoKey("Return", nil); got != "Return" {
		t.Errorf("buildXdoKey() = %q", got)
	}
}
