package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "s3cr3t"

// newAuthTestHandler создаёт защищённый handler, считающий успешные вызовы.
func newAuthTestHandler(t *testing.T, allowQueryKey bool) (http.Handler, *int) {
	t.Helper()

	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	auth := NewAPIKeyAuth(testSecret, slog.Default())
	if allowQueryKey {
		return auth.MiddlewareWithQueryKey()(inner), &calls
	}
	return auth.Middleware()(inner), &calls
}

func TestAPIKeyAuth_Header(t *testing.T) {
	handler, calls := newAuthTestHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("X-API-KEY", testSecret)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, ожидался 200", rec.Code)
	}
	if *calls != 1 {
		t.Errorf("handler вызван %d раз, ожидался 1", *calls)
	}
}

func TestAPIKeyAuth_Bearer(t *testing.T) {
	handler, calls := newAuthTestHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, ожидался 200", rec.Code)
	}
	if *calls != 1 {
		t.Errorf("handler вызван %d раз, ожидался 1", *calls)
	}
}

func TestAPIKeyAuth_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"без секрета", func(_ *http.Request) {}},
		{"неверный X-API-KEY", func(r *http.Request) { r.Header.Set("X-API-KEY", "wrong") }},
		{"неверный Bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }},
		{"Basic вместо Bearer", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+testSecret) }},
		{"пустой Bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, calls := newAuthTestHandler(t, false)

			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, ожидался 401", rec.Code)
			}
			// Ни одного побочного эффекта: защищённый handler не вызывался
			if *calls != 0 {
				t.Errorf("handler вызван %d раз, ожидался 0", *calls)
			}
		})
	}
}

func TestAPIKeyAuth_QueryKey(t *testing.T) {
	// ?key= принимается только при MiddlewareWithQueryKey
	handler, calls := newAuthTestHandler(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/files/abc/download?key="+testSecret, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, ожидался 200", rec.Code)
	}
	if *calls != 1 {
		t.Errorf("handler вызван %d раз, ожидался 1", *calls)
	}
}

func TestAPIKeyAuth_QueryKeyNotAllowedOnRegularRoutes(t *testing.T) {
	handler, calls := newAuthTestHandler(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/files?key="+testSecret, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, ожидался 401: ?key= разрешён только на download", rec.Code)
	}
	if *calls != 0 {
		t.Errorf("handler вызван %d раз, ожидался 0", *calls)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/files", "/api/files"},
		{"/metrics", "/metrics"},
		{"/api/files/0b5c9e0a-1d2f-4c3b-8a7d-6e5f4a3b2c1d", "/api/files/{id}"},
		{"/api/files/0b5c9e0a-1d2f-4c3b-8a7d-6e5f4a3b2c1d/download", "/api/files/{id}/download"},
		{"/health/live", "/health/live"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидался %q", tt.path, got, tt.want)
		}
	}
}
