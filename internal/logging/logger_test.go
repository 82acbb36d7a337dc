package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "debug", Format: "json"}, &buf)
	defer InitWriter(DefaultConfig(), &bytes.Buffer{})

	l := WithComponent("session")
	l.Info().Str("symbol", "A").Msg("letter")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "session" {
		t.Errorf("component = %v, want session", entry["component"])
	}
	if entry["symbol"] != "A" {
		t.Errorf("symbol = %v, want A", entry["symbol"])
	}
}

func TestInitWriter_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			InitWriter(Config{Level: tt.level, Format: "json"}, &bytes.Buffer{})
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("GlobalLevel() = %v, want %v", got, tt.want)
			}
		})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(Config{Level: "info", Format: "json"}, &buf)
	defer InitWriter(DefaultConfig(), &bytes.Buffer{})

	l := WithSession("app", "abc")
	l.Info().Msg("started")

	out := buf.String()
	if !strings.Contains(out, `"sessionId":"abc"`) || !strings.Contains(out, `"component":"app"`) {
		t.Errorf("missing session fields: %s", out)
	}
}
