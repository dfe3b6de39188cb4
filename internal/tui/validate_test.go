// ABOUTME: Tests for the laulau backend health check.
// ABOUTME: Serves canned /healthz responses from httptest and checks the verdicts.
package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("requested %s, want /healthz", r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateConnection(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"laulau backend", http.StatusOK, `{"status":"ok","service":"laulau"}`, false},
		{"degraded", http.StatusOK, `{"status":"draining","service":"laulau"}`, true},
		{"server error", http.StatusInternalServerError, `internal error`, true},
		{"some other service", http.StatusOK, `<html>hello</html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := healthServer(t, tt.status, tt.body)
			// A pasted /v1 suffix is tolerated.
			err := ValidateConnection(context.Background(), srv.URL+"/v1/")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConnection() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConnection_NotLaulau(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"status":"ok","service":"something-else"}`)
	if err := ValidateConnection(context.Background(), srv.URL); !errors.Is(err, ErrNotLaulau) {
		t.Errorf("expected ErrNotLaulau, got %v", err)
	}
}

func TestValidateConnection_Unreachable(t *testing.T) {
	if err := ValidateConnection(context.Background(), "http://localhost:1"); err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}

func TestValidateConnection_Cancelled(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"status":"ok","service":"laulau"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ValidateConnection(ctx, srv.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
