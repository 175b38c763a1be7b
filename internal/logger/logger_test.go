package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWritesJSONWithServiceName(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Format: "json", Output: &buf})

	log.Debug().Str("attempt_id", "a1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a json line, got %q: %v", buf.String(), err)
	}
	if line["service"] != "exam-session-service" || line["attempt_id"] != "a1" || line["level"] != "debug" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "WARN", Format: "json", Output: &buf})

	log.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}
	log.Warn().Msg("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "chatty", Output: &buf})

	if !strings.Contains(buf.String(), "unknown log level") {
		t.Fatalf("expected a warning about the level, got %q", buf.String())
	}
	buf.Reset()
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info level, got %q", buf.String())
	}
}

func TestAutoFormatIsJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	piped := New(Options{Output: &buf})
	piped.Info().Msg("piped")

	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("expected json when not writing to a terminal, got %q", buf.String())
	}

	buf.Reset()
	console := New(Options{Format: "pretty", Output: &buf})
	console.Info().Msg("console")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("expected console output for pretty format, got %q", buf.String())
	}
}
