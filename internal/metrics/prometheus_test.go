package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitPrometheusExposesCounters(t *testing.T) {
	InitPrometheus("mqs_test", func() float64 { return 3 })
	RecordPublish("orders", 0.01)
	RecordReceive("orders", 2, 0.02)
	RecordDelete("orders", 1)
	RecordRedrive("orders", "orders-dlq", 1)
	RecordCacheStats(5, 1)
	IncActiveLongPolls()
	DecActiveLongPolls()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"mqs_test_messages_published_total",
		"mqs_test_messages_received_total",
		"mqs_test_messages_deleted_total",
		"mqs_test_messages_redriven_total",
		"mqs_test_queue_cache_hits_total",
		"mqs_test_queues_total 3",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
