package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDEchoesValidAndReplacesInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	cases := map[string]bool{
		"abc-123":                true,
		"":                       false,
		"has space":              false,
		strings.Repeat("a", 200): false,
	}
	for incoming, echoed := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if incoming != "" {
			req.Header.Set("X-Request-Id", incoming)
		}
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		got := resp.Header().Get("X-Request-Id")
		if got == "" || got != resp.Body.String() {
			t.Fatalf("%q: header %q does not match context %q", incoming, got, resp.Body.String())
		}
		if echoed && got != incoming {
			t.Fatalf("expected %q echoed, got %q", incoming, got)
		}
		if !echoed && got == incoming {
			t.Fatalf("expected %q replaced", incoming)
		}
	}
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"internal"`) || !strings.Contains(resp.Body.String(), `"requestId"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
