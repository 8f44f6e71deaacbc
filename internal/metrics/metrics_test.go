package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersDistinctCollectorsPerInstance(t *testing.T) {
	a := New("chain_a")
	b := New("chain_b")

	a.BlocksApplied.Inc()
	a.TransactionsApplied.WithLabelValues("executed").Inc()
	a.LastIrreversible.Set(42)

	body := scrape(t, a)
	assert.Contains(t, body, "chain_a_blocks_applied_total 1")
	assert.Contains(t, body, `chain_a_transactions_applied_total{status="executed"} 1`)
	assert.Contains(t, body, "chain_a_last_irreversible_block_height 42")
	assert.NotContains(t, body, "chain_b_", "a second Collectors instance must not leak into a's registry")

	bBody := scrape(t, b)
	assert.NotContains(t, bBody, "chain_a_")
}

func scrape(t *testing.T, c *Collectors) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestShardLockFailuresAndDeferredQueueDepthAreIndependentGauges(t *testing.T) {
	c := New("ns")
	c.ShardLockFailures.Add(3)
	c.DeferredQueueDepth.Set(7)

	body := scrape(t, c)
	assert.True(t, strings.Contains(body, "ns_shard_lock_validation_failures_total 3"))
	assert.True(t, strings.Contains(body, "ns_deferred_transaction_queue_depth 7"))
}
