package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/naru-gw/gatewayd/internal/metrics"
	"github.com/naru-gw/gatewayd/internal/store"
)

func newTestServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()
	s := store.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return NewServer(New(s, nil), metrics.NewCollector(), nil), cancel
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAppAddEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	rr := postJSON(t, srv, "/app/add", appAddRequest{AppID: "t1", LimitIntervalSeconds: 1, Limit: 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr2 := postJSON(t, srv, "/app/add", appAddRequest{AppID: "t1", LimitIntervalSeconds: 1, Limit: 5})
	if rr2.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", rr2.Code)
	}
}

func TestAppUpdateEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	postJSON(t, srv, "/app/add", appAddRequest{AppID: "t1", LimitIntervalSeconds: 1, Limit: 5})
	rr := postJSON(t, srv, "/app/update", appAddRequest{AppID: "t1", LimitIntervalSeconds: 2, Limit: 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rrUnknown := postJSON(t, srv, "/app/update", appAddRequest{AppID: "missing", LimitIntervalSeconds: 1, Limit: 1})
	if rrUnknown.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown app, got %d", rrUnknown.Code)
	}
}

func TestAppRemoveEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	postJSON(t, srv, "/app/add", appAddRequest{AppID: "t1", LimitIntervalSeconds: 1, Limit: 5})
	rr := postJSON(t, srv, "/app/remove", appIDRequest{AppID: "t1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAppGetEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	postJSON(t, srv, "/app/add", appAddRequest{AppID: "t1", LimitIntervalSeconds: 1, Limit: 5})
	rr := postJSON(t, srv, "/app/get", appIDRequest{AppID: "t1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("app_id=t1")) {
		t.Errorf("expected body to mention app_id, got %q", rr.Body.String())
	}

	rrMissing := postJSON(t, srv, "/app/get", appIDRequest{AppID: "missing"})
	if rrMissing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rrMissing.Code)
	}
}

func TestLBAddEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	rr := postJSON(t, srv, "/lb/add", AddRouteRequest{
		Name:             "api",
		MatchRule:        MatchRule{Type: MatchPathStartsWith, Value: "/api"},
		ServiceDiscovery: DiscoveryStatic,
		StaticUpstream:   []string{"10.0.0.1:8080"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rrDup := postJSON(t, srv, "/lb/add", AddRouteRequest{
		Name:             "api",
		MatchRule:        MatchRule{Type: MatchPathStartsWith, Value: "/api"},
		ServiceDiscovery: DiscoveryStatic,
		StaticUpstream:   []string{"10.0.0.1:8080"},
	})
	if rrDup.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate route, got %d", rrDup.Code)
	}
}

func TestLBRemoveEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	postJSON(t, srv, "/lb/add", AddRouteRequest{
		Name:             "api",
		MatchRule:        MatchRule{Type: MatchPathStartsWith, Value: "/api"},
		ServiceDiscovery: DiscoveryStatic,
		StaticUpstream:   []string{"10.0.0.1:8080"},
	})
	rr := postJSON(t, srv, "/lb/remove", map[string]string{"name": "api"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/app/add", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 (config_invalid status), got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
