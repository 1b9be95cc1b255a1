package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "counts runes instead of bytes",
			input:  "Müller GmbH",
			limit:  6,
			expect: "Müller...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct {
		json  bool
		debug bool
	}{{false, false}, {true, false}, {false, true}, {true, true}} {
		l, err := New(Options{JSON: tc.json, Debug: tc.debug})
		if err != nil {
			t.Fatalf("json=%v debug=%v: unexpected error: %v", tc.json, tc.debug, err)
		}
		if got := l.Core().Enabled(-1); got != tc.debug {
			t.Fatalf("json=%v debug=%v: debug enabled = %v", tc.json, tc.debug, got)
		}
	}
}

func TestNewLoggerWritesToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")

	l, err := New(Options{JSON: true, Output: []string{path}, Version: "1.2.3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info("profile created")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not json: %v (%s)", err, data)
	}
	if entry["step"] != "profile created" {
		t.Fatalf("unexpected message %v", entry["step"])
	}
	if entry["version"] != "1.2.3" {
		t.Fatalf("unexpected version %v", entry["version"])
	}
}
