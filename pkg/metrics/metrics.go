package metrics

import (
	"errors"
	"time"

	"churn-dashboard/pkg/query"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics regroupe les compteurs du dashboard. Chaque instance a son propre
// registre pour que les tests puissent en créer plusieurs.
type Metrics struct {
	Registry *prometheus.Registry

	queries      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	datasetRows  prometheus.Gauge
	filteredRows prometheus.Histogram
}

// New enregistre les métriques dans un registre neuf.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churn_dashboard_queries_total",
			Help: "Total queries by endpoint and result",
		}, []string{"endpoint", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "churn_dashboard_query_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms à ~400ms
		}, []string{"endpoint"}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "churn_dashboard_dataset_rows",
			Help: "Rows in the loaded dataset snapshot",
		}),
		filteredRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "churn_dashboard_filtered_rows",
			Help:    "Rows surviving the filter per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(m.queries, m.duration, m.datasetRows, m.filteredRows)
	return m
}

// SetDatasetRows publie la taille du snapshot chargé.
func (m *Metrics) SetDatasetRows(n int) {
	m.datasetRows.Set(float64(n))
}

// Observe enregistre une requête terminée.
func (m *Metrics) Observe(endpoint string, start time.Time, rows int, err error) {
	m.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	m.queries.WithLabelValues(endpoint, Result(err)).Inc()
	if err == nil {
		m.filteredRows.Observe(float64(rows))
	}
}

// Result classe une erreur de requête pour le label "result".
func Result(err error) string {
	var fe *query.InvalidFilterError
	var de *query.DataIntegrityError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe):
		return "invalid_filter"
	case errors.As(err, &de):
		return "data_integrity"
	}
	return "error"
}
