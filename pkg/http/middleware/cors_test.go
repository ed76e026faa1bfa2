package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsServer(origins ...string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(origins, 10*time.Minute))
	e.POST("/api/analysis", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func serve(e *echo.Echo, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/analysis", nil)
	if origin != "" {
		req.Header.Set(echo.HeaderOrigin, origin)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCORS_Preflight(t *testing.T) {
	rec := serve(corsServer("https://dash.example.com"), http.MethodOptions, "https://dash.example.com")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.NotContains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization)
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allow   string
	}{
		{"listed origin", []string{"https://dash.example.com/"}, "https://dash.example.com", "https://dash.example.com"},
		{"unlisted origin", []string{"https://dash.example.com"}, "https://evil.example.com", ""},
		{"wildcard", []string{"*"}, "https://any.example.com", "https://any.example.com"},
		{"empty list allows any", nil, "https://any.example.com", "https://any.example.com"},
		{"same origin request", []string{"https://dash.example.com"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(corsServer(tt.origins...), http.MethodPost, tt.origin)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.allow, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
			if tt.origin != "" {
				assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
			}
		})
	}
}
