// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func ok() Checker {
	return pingFunc(func(context.Context) error { return nil })
}

func failing() Checker {
	return pingFunc(func(context.Context) error { return errors.New("down") })
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		deps       []Dependency
		shutdown   bool
		wantStatus int
		wantBody   string
	}{
		{
			name: "all healthy",
			deps: []Dependency{
				{Name: "database", Checker: ok()},
				{Name: "redis", Checker: ok()},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "redis down",
			deps: []Dependency{
				{Name: "database", Checker: ok()},
				{Name: "redis", Checker: failing()},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
		{
			name:       "checker missing",
			deps:       []Dependency{{Name: "database"}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
		},
		{
			name:       "shutting down",
			deps:       []Dependency{{Name: "database", Checker: ok()}},
			shutdown:   true,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "shutting_down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.deps...)
			h.SetShutdown(tt.shutdown)

			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantBody {
				t.Errorf("status body = %q, want %q", body.Status, tt.wantBody)
			}
		})
	}
}

func TestReadinessReportsStats(t *testing.T) {
	h := NewHandler(Dependency{
		Name:    "database",
		Checker: ok(),
		Stats:   func() map[string]any { return map[string]any{"in_use": 2} },
	})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Checks) != 1 || body.Checks[0].Stats["in_use"] != float64(2) {
		t.Errorf("checks = %+v", body.Checks)
	}
}

func TestLiveness(t *testing.T) {
	h := NewHandler()

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	h.SetShutdown(true)
	rec = httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after shutdown = %d, want 503", rec.Code)
	}
}
