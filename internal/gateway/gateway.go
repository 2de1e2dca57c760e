// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gateway is the policy indirection layer in front of the sources.
// It screens outgoing queries against injection patterns, rate-limits per
// source, and keeps a bounded audit trail. A policy rejection is a distinct
// error type so callers can tell it apart from a genuine source failure.
package gateway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-pilot/pkg/types"
)

// RejectionError reports that the gateway refused to forward a query.
type RejectionError struct {
	Source string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected query for %s: %s", e.Source, e.Reason)
}

// injectionPatterns are the substrings that trip the injection screen.
// Matching is lowercase substring, same as the screening the sources
// themselves apply.
var injectionPatterns = []string{
	"union select",
	"insert into",
	"drop table",
	"delete from",
	"--",
	";",
}

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Source       string    `json:"source"`
	Query        string    `json:"query"`
	ResponseTime float64   `json:"response_time_ms"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

// Gateway applies pass/fail policy checks before a source call and records
// the outcome afterwards. Safe for concurrent use.
type Gateway struct {
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	audit    []AuditEntry

	ratePerMinute int
	burst         int
	auditSize     int
}

// New builds a gateway from config. A zero RatePerMinute disables rate
// limiting entirely.
func New(cfg types.GatewayConfig, logger *zap.Logger) *Gateway {
	auditSize := cfg.AuditLogSize
	if auditSize <= 0 {
		auditSize = 1000
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Gateway{
		logger:        logger,
		limiters:      make(map[string]*rate.Limiter),
		ratePerMinute: cfg.RatePerMinute,
		burst:         burst,
		auditSize:     auditSize,
	}
}

// Check runs the policy checks for a query bound for source. It returns a
// *RejectionError when the query must not be forwarded, nil otherwise.
func (g *Gateway) Check(source, query string) error {
	lowered := strings.ToLower(query)
	for _, pattern := range injectionPatterns {
		if strings.Contains(lowered, pattern) {
			g.logger.Warn("injection pattern in query",
				zap.String("source", source),
				zap.String("pattern", pattern))
			return &RejectionError{Source: source, Reason: "query matches injection pattern"}
		}
	}

	if g.ratePerMinute > 0 && !g.limiter(source).Allow() {
		return &RejectionError{Source: source, Reason: "rate limit exceeded"}
	}
	return nil
}

// limiter returns the per-source limiter, creating it on first use.
func (g *Gateway) limiter(source string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(g.ratePerMinute)/60.0), g.burst)
		g.limiters[source] = l
	}
	return l
}

// Record appends an entry to the audit trail, evicting the oldest entry
// once the configured bound is reached.
func (g *Gateway) Record(entry AuditEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.audit = append(g.audit, entry)
	if len(g.audit) > g.auditSize {
		g.audit = g.audit[len(g.audit)-g.auditSize:]
	}
}

// AuditLog returns a copy of the audit trail, oldest first.
func (g *Gateway) AuditLog() []AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]AuditEntry, len(g.audit))
	copy(out, g.audit)
	return out
}
