package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFoldsComponentIntoPrefix(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("dataset written", String(FieldComponent, "orchestrator"), String(FieldDataset, "csv_1.csv"))

	line := buf.String()
	if !strings.Contains(line, "INFO orchestrator: dataset written") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "dataset=csv_1.csv") {
		t.Fatalf("expected dataset attr in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be folded into the prefix: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}

func TestMaybeQuote(t *testing.T) {
	if got := maybeQuote("plain"); got != "plain" {
		t.Fatalf("plain value quoted: %q", got)
	}
	if got := maybeQuote("two words"); got != `"two words"` {
		t.Fatalf("spaced value not quoted: %q", got)
	}
	if got := maybeQuote(""); got != `""` {
		t.Fatalf("empty value rendering: %q", got)
	}
}
