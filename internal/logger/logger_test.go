package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("JSON output carries service fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := newWithWriter("debug", "json", &buf)
		l.Info().Msg("hello")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
		}
		if entry["service"] != "memories" {
			t.Errorf("Expected service 'memories', got %v", entry["service"])
		}
		if entry["message"] != "hello" {
			t.Errorf("Expected message 'hello', got %v", entry["message"])
		}
	})

	t.Run("Invalid level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		l := newWithWriter("loud", "json", &buf)
		if l.GetLevel() != zerolog.InfoLevel {
			t.Errorf("Expected info level, got %s", l.GetLevel())
		}
		l.Debug().Msg("hidden")
		if buf.Len() != 0 {
			t.Errorf("Expected debug line to be dropped, got %q", buf.String())
		}
	})

	t.Run("Component tag", func(t *testing.T) {
		var buf bytes.Buffer
		l := Component(newWithWriter("info", "json", &buf), "reclaim")
		l.Info().Msg("x")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if entry["component"] != "reclaim" {
			t.Errorf("Expected component 'reclaim', got %v", entry["component"])
		}
	})
}
