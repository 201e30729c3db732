package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQueryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("weather", OutcomeOK))

	RecordQuery("weather", OutcomeOK, 150*time.Millisecond)

	after := testutil.ToFloat64(QueriesTotal.WithLabelValues("weather", OutcomeOK))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestRecordQueryDefaultsKind(t *testing.T) {
	before := testutil.ToFloat64(QueriesTotal.WithLabelValues("unknown", OutcomeTransport))

	RecordQuery("", OutcomeTransport, time.Second)

	if got := testutil.ToFloat64(QueriesTotal.WithLabelValues("unknown", OutcomeTransport)); got != before+1 {
		t.Fatalf("expected unknown kind counter %v, got %v", before+1, got)
	}
}
