package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mandate-authority/mandate-authority/internal/adapter/outbound/memory"
	"github.com/mandate-authority/mandate-authority/internal/service"
)

func TestServer_Routes_RequestIDHeaderPresent(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	srv := NewServer(WithAgentService(agents))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/agents")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected every response to carry a request id header")
	}
}

func TestServer_Routes_HealthOmittedWithoutChecker(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	srv := NewServer(WithAgentService(agents))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected /health to be unmounted without a checker, got %d", resp.StatusCode)
	}
}

func TestServer_Routes_HealthMountedWithChecker(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	hc := NewHealthChecker(nil, nil)
	srv := NewServer(WithAgentService(agents), WithHealthChecker(hc))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with no configured components, got %d", resp.StatusCode)
	}
}

func TestServer_Routes_StatsOmittedWithoutService(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	srv := NewServer(WithAgentService(agents))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected /stats to be unmounted without a StatsService, got %d", resp.StatusCode)
	}
}

func TestServer_Routes_StatsReportsTally(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	stats := service.NewStatsService()
	stats.RecordAllow()
	stats.RecordBlock()
	stats.RecordBlockReason("TOTAL_BUDGET")

	srv := NewServer(WithAgentService(agents), WithStatsService(stats))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got service.Stats
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Allowed != 1 || got.Blocked != 1 || got.BlockReasonCounts["TOTAL_BUDGET"] != 1 {
		t.Fatalf("unexpected stats snapshot: %+v", got)
	}
}

func TestServer_StartStop_GracefulShutdown(t *testing.T) {
	agents := service.NewAgentService(memory.NewAgentStore())
	srv := NewServer(WithAddr("127.0.0.1:0"), WithAgentService(agents))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned an error after graceful shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after context cancellation")
	}
}
