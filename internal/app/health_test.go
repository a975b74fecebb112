package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestHandler(fs *fakeStore) http.Handler {
	return NewHTTPServer(newTestService(fs), "http://localhost:3000").Handler()
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("ok = %v, want true", body["ok"])
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("status = %v, want ready", body["status"])
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok {
		t.Fatal("expected checks object")
	}
	database, ok := checks["database"].(map[string]any)
	if !ok || database["status"] != "ok" {
		t.Errorf("database check = %v, want ok", checks["database"])
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	handler := newTestHandler(fs)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("status = %v, want not_ready", body["status"])
	}
	checks := body["checks"].(map[string]any)
	database := checks["database"].(map[string]any)
	if database["status"] != "error" {
		t.Errorf("database status = %v, want error", database["status"])
	}
	if database["error"] != "connection refused" {
		t.Errorf("database error = %v", database["error"])
	}
}

func TestReadyEndpoint_OptionsRequest(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestReadyEndpoint_CORSHeaders(t *testing.T) {
	handler := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", origin)
	}
}

func TestPingMethod(t *testing.T) {
	called := false
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			called = true
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if !called {
		t.Error("expected the store ping to be invoked")
	}
}
