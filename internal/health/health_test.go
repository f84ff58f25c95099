package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")

	handler.RegisterChecker("postgres", NewFuncChecker("postgres", func(_ context.Context) error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}

	if response.Version != "v1.0.0" {
		t.Errorf("expected version v1.0.0, got %s", response.Version)
	}

	if len(response.Checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(response.Checks))
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	handler := NewHandler("v1.0.0")

	handler.RegisterChecker("kafka", NewFuncChecker("kafka", func(_ context.Context) error {
		return errors.New("broker unavailable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}

	check, ok := response.Checks["kafka"]
	if !ok {
		t.Fatal("expected kafka check in response")
	}
	if check.Message != "broker unavailable" {
		t.Errorf("unexpected check message: %s", check.Message)
	}
}

func TestHealthHandler_MixedStatusWins(t *testing.T) {
	handler := NewHandler("v1.0.0")

	handler.RegisterChecker("ok", NewFuncChecker("ok", func(_ context.Context) error {
		return nil
	}))
	handler.RegisterChecker("bad", NewFuncChecker("bad", func(_ context.Context) error {
		return errors.New("down")
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when any check is unhealthy, got %d", w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()

	LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("expected body 'ok', got %q", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.0.0")

	handler.RegisterChecker("postgres", NewFuncChecker("postgres", func(_ context.Context) error {
		return nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	handler.RegisterChecker("kafka", NewFuncChecker("kafka", func(_ context.Context) error {
		return errors.New("down")
	}))

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestFuncCheckerReceivesContext(t *testing.T) {
	checker := NewFuncChecker("ctx", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("expected deadline on check context")
		}
		return nil
	})

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("ctx", checker)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(_ context.Context) error {
	return s.err
}

func TestNewStoreChecker(t *testing.T) {
	healthy := NewStoreChecker(stubPinger{})
	check := healthy.Check(context.Background())
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy check, got %s", check.Status)
	}
	if check.Name != "postgres" {
		t.Errorf("expected check name postgres, got %s", check.Name)
	}

	broken := NewStoreChecker(stubPinger{err: errors.New("connection refused")})
	check = broken.Check(context.Background())
	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy check, got %s", check.Status)
	}
}

type slowChecker struct{}

func (slowChecker) Check(_ context.Context) Check {
	return Check{
		Name:       "slow",
		Status:     StatusHealthy,
		DurationMs: (2 * time.Second).Milliseconds(),
	}
}

func TestDegradingChecker(t *testing.T) {
	check := NewDegradingChecker(slowChecker{}).Check(context.Background())

	if check.Status != StatusDegraded {
		t.Errorf("expected degraded status for slow check, got %s", check.Status)
	}
}
