package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelInfo, Output: &buf})

	l.Debug("hidden")
	Component(l.Logger, "engine").Info("scan started", "targets", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	if !strings.Contains(out, "component=engine") || !strings.Contains(out, "targets=3") {
		t.Errorf("output = %q", out)
	}

	l.SetLevel(slog.LevelDebug)
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("SetLevel(debug) did not take effect")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: slog.LevelInfo, Format: "json", Output: &buf})
	l.Info("selection", "target", "yes")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "selection" || rec["target"] != "yes" {
		t.Errorf("record = %v", rec)
	}
}

func TestNoOutputsDiscards(t *testing.T) {
	l := New(Options{})
	l.Error("nowhere")
	if l.Handler().Enabled(t.Context(), slog.LevelError) {
		t.Error("logger without outputs should be disabled")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanboard.log")
	l, closer, err := Open(path, Options{Level: slog.LevelInfo})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}

func TestJournalKey(t *testing.T) {
	if got := journalKey("target.id-1"); got != "TARGET_ID_1" {
		t.Errorf("journalKey() = %q, want TARGET_ID_1", got)
	}
}
