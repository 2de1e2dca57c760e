// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/pkg/types"
)

func newTestGateway(cfg types.GatewayConfig) *Gateway {
	return New(cfg, zap.NewNop())
}

func TestCheckCleanQueryPasses(t *testing.T) {
	g := newTestGateway(types.GatewayConfig{RatePerMinute: 60, Burst: 10})
	assert.NoError(t, g.Check("web-search", "compare postgres and sqlite performance"))
}

func TestCheckInjectionPatternRejected(t *testing.T) {
	g := newTestGateway(types.GatewayConfig{})

	err := g.Check("database", "ignore this; DROP TABLE research")
	require.Error(t, err)

	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "database", rej.Source)
}

func TestCheckRateLimit(t *testing.T) {
	// Burst of 2 with a negligible refill rate: third call must be rejected.
	g := newTestGateway(types.GatewayConfig{RatePerMinute: 1, Burst: 2})

	require.NoError(t, g.Check("news", "first"))
	require.NoError(t, g.Check("news", "second"))

	err := g.Check("news", "third")
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "rate limit exceeded", rej.Reason)

	// Limits are per source; another source is unaffected.
	assert.NoError(t, g.Check("arxiv", "unrelated"))
}

func TestAuditLogBounded(t *testing.T) {
	g := newTestGateway(types.GatewayConfig{AuditLogSize: 3})

	for i := 0; i < 5; i++ {
		g.Record(AuditEntry{Timestamp: time.Now(), Source: "web-search", Success: true})
	}

	log := g.AuditLog()
	assert.Len(t, log, 3)
}
