package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-backend/internal/requestdata"
)

func traceTestRouter(capture **requestdata.TraceData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/", func(c *gin.Context) {
		*capture = requestdata.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAttachTraceContext_GeneratesIdentifiers(t *testing.T) {
	var td *requestdata.TraceData
	r := traceTestRouter(&td)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if td == nil {
		t.Fatal("trace data missing from request context")
	}
	if td.TraceID == "" || td.RequestID == "" {
		t.Fatalf("identifiers not generated: %+v", td)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != td.TraceID {
		t.Fatalf("X-Trace-Id header %q, want %q", got, td.TraceID)
	}
	if got := rec.Header().Get("X-Request-Id"); got != td.RequestID {
		t.Fatalf("X-Request-Id header %q, want %q", got, td.RequestID)
	}
}

func TestAttachTraceContext_HonorsCallerHeaders(t *testing.T) {
	var td *requestdata.TraceData
	r := traceTestRouter(&td)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-Id", "trace-from-upstream")
	req.Header.Set("X-Request-Id", "req-from-upstream")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if td == nil {
		t.Fatal("trace data missing from request context")
	}
	if td.TraceID != "trace-from-upstream" || td.RequestID != "req-from-upstream" {
		t.Fatalf("caller identifiers not preserved: %+v", td)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != "trace-from-upstream" {
		t.Fatalf("X-Trace-Id header %q not echoed", got)
	}
}
