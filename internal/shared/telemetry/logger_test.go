package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	os.Stdout = orig
	_ = w.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	t.Cleanup(func() { SetLevel(LevelInfo) })

	lines := captureStdout(t, func() {
		Debug("hidden", nil)
		Info("shown", map[string]any{"k": "v"})
	})
	if len(lines) != 1 || lines[0]["msg"] != "shown" || lines[0]["level"] != "info" || lines[0]["k"] != "v" {
		t.Fatalf("unexpected lines: %v", lines)
	}

	SetLevel(LevelWarn)
	lines = captureStdout(t, func() {
		Info("hidden", nil)
		Warn("kept", nil)
		Error("kept", nil)
	})
	if len(lines) != 2 {
		t.Fatalf("expected warn and error only, got %v", lines)
	}
}

func TestErrorFieldsAreStrings(t *testing.T) {
	lines := captureStdout(t, func() {
		Error("failed", map[string]any{"error": errors.New("boom")})
	})
	if len(lines) != 1 || lines[0]["error"] != "boom" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "WARNING": LevelWarn, "": LevelInfo, "error": LevelError}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v %v", raw, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}
