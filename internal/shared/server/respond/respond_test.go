package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorWritesEnvelopeWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sessions/:id", func(c *gin.Context) {
		c.Set("requestId", "req-1")
		c.Set("sessionId", c.Param("id"))
		Error(c, http.StatusConflict, "read_only", "session is read-only", gin.H{"state": "error"})
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "read_only" || body.Error.RequestID != "req-1" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestNoContentSurvivesLaterWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.DELETE("/sessions/:id", func(c *gin.Context) {
		NoContent(c)
		c.Status(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil))
	if resp.Code != http.StatusNoContent || resp.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", resp.Code, resp.Body.String())
	}
}
