package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"churn-dashboard/pkg/query"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&query.InvalidFilterError{Field: "tenure"}, "invalid_filter"},
		{fmt.Errorf("summarize: %w", &query.DataIntegrityError{Field: "churn_prob"}), "data_integrity"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.SetDatasetRows(7043)
	m.Observe("summary", time.Now(), 374, nil)
	m.Observe("summary", time.Now(), 0, &query.InvalidFilterError{})

	if got := testutil.ToFloat64(m.datasetRows); got != 7043 {
		t.Fatalf("dataset rows: got %v", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues("summary", "ok")); got != 1 {
		t.Fatalf("ok queries: got %v", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues("summary", "invalid_filter")); got != 1 {
		t.Fatalf("invalid queries: got %v", got)
	}
	if n := testutil.CollectAndCount(m.filteredRows); n != 1 {
		t.Fatalf("filtered rows histogram: got %d series", n)
	}
}
