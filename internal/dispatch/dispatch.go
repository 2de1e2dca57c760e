// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch fans a research query out to the configured sources
// concurrently and collects one result per source regardless of individual
// failures. A slow or broken source never contaminates its siblings: each
// call has its own timeout, and every panic-free failure mode is folded
// into that source's own result.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-pilot/internal/gateway"
	"github.com/pdiddy/research-pilot/internal/registry"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// Dispatcher issues one request per target source, bounded by the configured
// concurrency ceiling. Requests beyond the ceiling run in successive batches,
// each batch fully awaited before the next begins.
type Dispatcher struct {
	registry *registry.Registry
	gateway  *gateway.Gateway
	client   *http.Client
	cfg      types.DispatchConfig
	logger   *zap.Logger

	// active is the healthy-source count from the most recent fan-out.
	active atomic.Int64
}

// New builds a dispatcher. gw may be nil; it is only consulted when
// cfg.UseGateway is set. client may be nil, in which case a default client
// is used (timeouts are per-call contexts, not client-level).
func New(reg *registry.Registry, gw *gateway.Gateway, client *http.Client, cfg types.DispatchConfig, logger *zap.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 6
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	return &Dispatcher{
		registry: reg,
		gateway:  gw,
		client:   client,
		cfg:      cfg,
		logger:   logger,
	}
}

// QueryAll queries the given sources concurrently and returns exactly one
// result per known source identifier, in target order. Unknown identifiers
// are silently dropped; an empty source list means the whole catalog.
func (d *Dispatcher) QueryAll(ctx context.Context, query string, sources []string) []types.SourceResult {
	targets := d.registry.Filter(sources)
	d.logger.Info("querying sources",
		zap.Int("count", len(targets)),
		zap.Strings("sources", targets))

	results := make([]types.SourceResult, len(targets))
	for start := 0; start < len(targets); start += d.cfg.MaxConcurrent {
		end := start + d.cfg.MaxConcurrent
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = d.querySource(ctx, targets[i], query)
			}(i)
		}
		wg.Wait()
	}

	healthy := 0
	for _, r := range results {
		if r.Status == types.SourceSuccess {
			healthy++
		}
	}
	d.active.Store(int64(healthy))

	d.logger.Info("fan-out complete",
		zap.Int("results", len(results)),
		zap.Int("healthy", healthy))
	return results
}

// ActiveSources returns the healthy-source count observed by the most
// recent fan-out.
func (d *Dispatcher) ActiveSources() int {
	return int(d.active.Load())
}

// querySource performs one source call and folds every failure mode into
// the returned result. It never returns an error.
func (d *Dispatcher) querySource(ctx context.Context, source, query string) types.SourceResult {
	start := time.Now()
	result := types.SourceResult{Source: source}

	fail := func(status types.SourceStatus, msg string) types.SourceResult {
		result.Status = status
		result.Error = msg
		result.ResponseTime = time.Since(start).Seconds()
		return result
	}

	ep, ok := d.registry.Resolve(source)
	if !ok {
		// Filter drops unknown ids before dispatch; this only triggers on
		// direct calls with an unvalidated id.
		return fail(types.SourceError, "unknown source")
	}

	if d.cfg.UseGateway && d.gateway != nil {
		if err := d.gateway.Check(source, query); err != nil {
			d.logger.Warn("gateway rejected source call",
				zap.String("source", source),
				zap.Error(err))
			return fail(types.SourceError, err.Error())
		}
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = d.cfg.SourceTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := d.doSearch(callCtx, ep.URL, query)
	elapsed := time.Since(start)

	d.recordAudit(source, query, elapsed, err)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			d.logger.Warn("source timed out",
				zap.String("source", source),
				zap.Duration("elapsed", elapsed))
			return fail(types.SourceTimeout, "request timeout")
		}
		d.logger.Warn("source failed",
			zap.String("source", source),
			zap.Error(err))
		return fail(types.SourceError, err.Error())
	}

	d.logger.Debug("source responded",
		zap.String("source", source),
		zap.Duration("elapsed", elapsed))

	result.Status = types.SourceSuccess
	result.Data = data
	result.ResponseTime = elapsed.Seconds()
	return result
}

// doSearch POSTs the query to the source's search endpoint and decodes the
// payload into the tagged SourceData shape.
func (d *Dispatcher) doSearch(ctx context.Context, baseURL, query string) (*types.SourceData, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	var data types.SourceData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &data, nil
}

// recordAudit writes the call outcome to the gateway's audit trail when the
// gateway is in the path.
func (d *Dispatcher) recordAudit(source, query string, elapsed time.Duration, err error) {
	if !d.cfg.UseGateway || d.gateway == nil {
		return
	}
	entry := gateway.AuditEntry{
		Timestamp:    time.Now().UTC(),
		Source:       source,
		Query:        query,
		ResponseTime: float64(elapsed.Milliseconds()),
		Success:      err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	d.gateway.Record(entry)
}

// HealthStatus is the outcome of probing one source's health endpoint.
type HealthStatus struct {
	Source    string    `json:"source"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// healthProbeTimeout bounds a single health probe.
const healthProbeTimeout = 5 * time.Second

// CheckAll probes every source's health endpoint concurrently and returns
// one status per catalog entry, in catalog order. Probe failures mark the
// source unhealthy; they never fail the check as a whole.
func (d *Dispatcher) CheckAll(ctx context.Context) []HealthStatus {
	catalog := d.registry.Catalog()
	statuses := make([]HealthStatus, len(catalog))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range catalog {
		g.Go(func() error {
			statuses[i] = d.checkSource(gctx, ep)
			return nil
		})
	}
	g.Wait()
	return statuses
}

// checkSource probes one source's health endpoint.
func (d *Dispatcher) checkSource(ctx context.Context, ep types.SourceEndpoint) HealthStatus {
	status := HealthStatus{
		Source:    ep.ID,
		Name:      ep.Name,
		LastCheck: time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, ep.URL+"/health", nil)
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}

	resp, err := d.client.Do(req)
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		status.Status = "unhealthy"
		status.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}

	status.Status = "healthy"
	return status
}

// HealthSummary aggregates per-source health into overall counts.
type HealthSummary struct {
	Total      int     `json:"total"`
	Healthy    int     `json:"healthy"`
	Unhealthy  int     `json:"unhealthy"`
	Percentage float64 `json:"percentage"`
}

// Summarize folds health statuses into a summary.
func Summarize(statuses []HealthStatus) HealthSummary {
	s := HealthSummary{Total: len(statuses)}
	for _, st := range statuses {
		if st.Status == "healthy" {
			s.Healthy++
		}
	}
	s.Unhealthy = s.Total - s.Healthy
	if s.Total > 0 {
		s.Percentage = float64(s.Healthy) / float64(s.Total) * 100
	}
	return s
}
