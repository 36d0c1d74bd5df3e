package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func captureLogs(t *testing.T, router *gin.Engine, req *http.Request) []map[string]any {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	router.ServeHTTP(httptest.NewRecorder(), req)

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("decode log json: %v", err)
		}
		out = append(out, payload)
	}
	return out
}

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), Auth("dev"), Logging())
	router.GET("/api/v1/sessions/:id", func(c *gin.Context) {
		c.Set("resumeId", "resume-1")
		c.Set("sessionId", "session-1")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/session-1", nil)
	req.Header.Set("X-Guest-Id", "guest1")
	logs := captureLogs(t, router, req)
	if len(logs) == 0 {
		t.Fatalf("expected log output")
	}
	payload := logs[len(logs)-1]

	required := []string{"request_id", "user_id", "resume_id", "session_id", "duration_ms", "status", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != "guest:guest1" || payload["is_guest"] != true {
		t.Fatalf("unexpected identity: %v %v", payload["user_id"], payload["is_guest"])
	}
	if payload["resume_id"] != "resume-1" || payload["session_id"] != "session-1" {
		t.Fatalf("unexpected ids: %v %v", payload["resume_id"], payload["session_id"])
	}
	if payload["route"] != "/api/v1/sessions/:id" || payload["level"] != "info" {
		t.Fatalf("unexpected route or level: %v %v", payload["route"], payload["level"])
	}
}

func TestLoggingLevelsAndProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Logging())
	router.GET("/api/v1/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	if logs := captureLogs(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)); len(logs) != 0 {
		t.Fatalf("expected probes to be silent, got %v", logs)
	}
	if logs := captureLogs(t, router, httptest.NewRequest(http.MethodGet, "/missing", nil)); len(logs) != 1 || logs[0]["level"] != "warn" {
		t.Fatalf("expected one warn line, got %v", logs)
	}
	if logs := captureLogs(t, router, httptest.NewRequest(http.MethodGet, "/broken", nil)); len(logs) != 1 || logs[0]["level"] != "error" {
		t.Fatalf("expected one error line, got %v", logs)
	}
}
