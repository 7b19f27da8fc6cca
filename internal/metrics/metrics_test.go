package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordPoll("src", OutcomeOK, time.Second)
	m.RecordConversation("src", "processed")
	m.RecordChunks("src", 1, 2, 3)
	m.RecordSinkWrite("sqlite", nil)
	m.RecordConsolidation(1, 1)
	m.RecordHTTP("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRecorders(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordPoll("claude", OutcomeOK, 10*time.Millisecond)
	m.RecordPoll("claude", OutcomeOK, 10*time.Millisecond)
	m.RecordChunks("claude", 3, 1, 0)
	m.RecordSinkWrite("sqlite", errors.New("x"))
	m.RecordConsolidation(5, 2)

	body := scrape(t, m)
	assert.Contains(t, body, `tuskmem_polls_total{outcome="ok",source="claude"} 2`)
	assert.Contains(t, body, `tuskmem_cache_chunks_total{result="written",source="claude"} 3`)
	assert.Contains(t, body, `tuskmem_sink_writes_total{sink="sqlite",status="error"} 1`)
	assert.Contains(t, body, `tuskmem_consolidation_conflicts_total 2`)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.RecordConversation("export", "processed")

	assert.Contains(t, scrape(t, m), `tuskmem_conversations_total{result="processed",source="export"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
