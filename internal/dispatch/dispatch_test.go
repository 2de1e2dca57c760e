// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/gateway"
	"github.com/pdiddy/research-pilot/internal/registry"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// newSourceServer returns an httptest server acting as one source.
func newSourceServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/health") {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"results": [{"title": "hit", "snippet": "text", "url": "http://x"}], "count": 1}`))
}

func newDispatcher(t *testing.T, endpoints []types.SourceEndpoint, cfg types.DispatchConfig, gw *gateway.Gateway) *Dispatcher {
	t.Helper()
	reg := registry.New(types.RegistryConfig{Sources: endpoints})
	return New(reg, gw, nil, cfg, zap.NewNop())
}

func TestQueryAllOneResultPerKnownSource(t *testing.T) {
	ts := newSourceServer(t, okHandler)

	endpoints := []types.SourceEndpoint{
		{ID: "web-search", URL: ts.URL, Timeout: 5 * time.Second},
		{ID: "arxiv", URL: ts.URL, Timeout: 5 * time.Second},
	}
	d := newDispatcher(t, endpoints, types.DispatchConfig{MaxConcurrent: 6, SourceTimeout: 5 * time.Second}, nil)

	results := d.QueryAll(context.Background(), "test query", []string{"web-search", "bogus", "arxiv"})

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (unknown id dropped)", len(results))
	}
	if results[0].Source != "web-search" || results[1].Source != "arxiv" {
		t.Errorf("result order = %s, %s; want web-search, arxiv", results[0].Source, results[1].Source)
	}
	for _, r := range results {
		if r.Status != types.SourceSuccess {
			t.Errorf("%s status = %s, want success", r.Source, r.Status)
		}
		if r.Data == nil || r.Data.Kind != types.DataItems || len(r.Data.Items) != 1 {
			t.Errorf("%s data not decoded as item list", r.Source)
		}
	}
}

func TestQueryAllTimeoutIsolation(t *testing.T) {
	fast := newSourceServer(t, okHandler)
	slow := newSourceServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		okHandler(w, r)
	})

	endpoints := []types.SourceEndpoint{
		{ID: "web-search", URL: fast.URL, Timeout: 5 * time.Second},
		{ID: "arxiv", URL: slow.URL, Timeout: 100 * time.Millisecond},
		{ID: "news", URL: fast.URL, Timeout: 5 * time.Second},
	}
	d := newDispatcher(t, endpoints, types.DispatchConfig{MaxConcurrent: 6}, nil)

	results := d.QueryAll(context.Background(), "test query", nil)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	bySource := make(map[string]types.SourceResult)
	for _, r := range results {
		bySource[r.Source] = r
	}
	if bySource["arxiv"].Status != types.SourceTimeout {
		t.Errorf("arxiv status = %s, want timeout", bySource["arxiv"].Status)
	}
	if bySource["web-search"].Status != types.SourceSuccess {
		t.Errorf("web-search status = %s, want success", bySource["web-search"].Status)
	}
	if bySource["news"].Status != types.SourceSuccess {
		t.Errorf("news status = %s, want success", bySource["news"].Status)
	}
}

func TestQueryAllErrorIsolation(t *testing.T) {
	good := newSourceServer(t, okHandler)
	bad := newSourceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	endpoints := []types.SourceEndpoint{
		{ID: "web-search", URL: good.URL, Timeout: 5 * time.Second},
		{ID: "github", URL: bad.URL, Timeout: 5 * time.Second},
	}
	d := newDispatcher(t, endpoints, types.DispatchConfig{MaxConcurrent: 6}, nil)

	results := d.QueryAll(context.Background(), "test query", nil)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[1].Status != types.SourceError {
		t.Errorf("github status = %s, want error", results[1].Status)
	}
	if !strings.Contains(results[1].Error, "HTTP 500") {
		t.Errorf("github error = %q, want HTTP 500 mention", results[1].Error)
	}
	if results[0].Status != types.SourceSuccess {
		t.Errorf("web-search status = %s, want success", results[0].Status)
	}
	if d.ActiveSources() != 1 {
		t.Errorf("ActiveSources() = %d, want 1", d.ActiveSources())
	}
}

func TestQueryAllBoundedConcurrency(t *testing.T) {
	var inFlight, peak int64
	ts := newSourceServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		okHandler(w, r)
	})

	var endpoints []types.SourceEndpoint
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		endpoints = append(endpoints, types.SourceEndpoint{ID: id, URL: ts.URL, Timeout: 5 * time.Second})
	}
	d := newDispatcher(t, endpoints, types.DispatchConfig{MaxConcurrent: 2}, nil)

	results := d.QueryAll(context.Background(), "test query", nil)

	if len(results) != len(ids) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(ids))
	}
	if got := atomic.LoadInt64(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestQueryAllGatewayRejection(t *testing.T) {
	ts := newSourceServer(t, okHandler)

	endpoints := []types.SourceEndpoint{
		{ID: "database", URL: ts.URL, Timeout: 5 * time.Second},
	}
	gw := gateway.New(types.GatewayConfig{}, zap.NewNop())
	d := newDispatcher(t, endpoints, types.DispatchConfig{MaxConcurrent: 6, UseGateway: true}, gw)

	results := d.QueryAll(context.Background(), "x; drop table research", nil)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Status != types.SourceError {
		t.Errorf("status = %s, want error", results[0].Status)
	}
	if !strings.Contains(results[0].Error, "rejected") {
		t.Errorf("error = %q, want gateway rejection", results[0].Error)
	}
}

func TestCheckAll(t *testing.T) {
	up := newSourceServer(t, okHandler)
	down := newSourceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	endpoints := []types.SourceEndpoint{
		{ID: "web-search", Name: "Web Search", URL: up.URL},
		{ID: "news", Name: "News API", URL: down.URL},
	}
	d := newDispatcher(t, endpoints, types.DispatchConfig{}, nil)

	statuses := d.CheckAll(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("len(statuses) = %d, want 2", len(statuses))
	}
	if statuses[0].Status != "healthy" {
		t.Errorf("web-search = %s, want healthy", statuses[0].Status)
	}
	if statuses[1].Status != "unhealthy" {
		t.Errorf("news = %s, want unhealthy", statuses[1].Status)
	}

	sum := Summarize(statuses)
	if sum.Healthy != 1 || sum.Unhealthy != 1 || sum.Percentage != 50 {
		t.Errorf("summary = %+v, want 1 healthy, 1 unhealthy, 50%%", sum)
	}
}
