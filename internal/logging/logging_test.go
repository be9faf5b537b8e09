package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelWarn, Output: &buf})

	l.Info("hidden")
	l.Warn("shown", "component", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=test") {
		t.Errorf("output = %q, want warn line with component attr", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf})
	l.With("component", "dispatch").Debug("generated stars", "stars", 100000)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "dispatch" {
		t.Errorf("component = %v, want dispatch", rec["component"])
	}
	if rec["stars"] != float64(100000) {
		t.Errorf("stars = %v, want 100000", rec["stars"])
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger reports enabled")
	}
	l.With("a", 1).WithGroup("g").Error("nothing")
}

func TestOpenFile(t *testing.T) {
	w, err := OpenFile("")
	if err != nil {
		t.Fatalf("OpenFile(\"\") error = %v", err)
	}
	if _, err := w.Write([]byte("x")); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	w.Close()

	path := filepath.Join(t.TempDir(), "galaxy.log")
	w, err = OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(%q) error = %v", path, err)
	}
	defer w.Close()
	New(Options{Output: w}).Info("written")
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("json") != FormatJSON {
		t.Error("ParseFormat(json) != FormatJSON")
	}
	if ParseFormat("anything") != FormatText {
		t.Error("ParseFormat(anything) != FormatText")
	}
}
