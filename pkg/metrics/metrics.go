// Package metrics exposes store and request metrics in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

const namespace = "ekaya_macro"

// DefaultScrapeTimeout bounds the queries of one scrape.
const DefaultScrapeTimeout = 10 * time.Second

// StoreReader is the read model scraped on every collection.
type StoreReader interface {
	CountBySource(ctx context.Context) (map[models.Source]int64, error)
	LatestRun(ctx context.Context) (*models.ValidationRun, error)
}

// SourceLister lists the data source registry.
type SourceLister interface {
	List(ctx context.Context) ([]models.DataSource, error)
}

var (
	observationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "observations"),
		"Rows stored per source.",
		[]string{"source"}, nil)
	qualityScoreDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "validation", "quality_score"),
		"Quality score of the latest validation run.",
		nil, nil)
	qualityStatusDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "validation", "status"),
		"Status of the latest validation run; the current status is 1.",
		[]string{"status"}, nil)
	lastValidationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "validation", "last_run_timestamp_seconds"),
		"Finish time of the latest validation run.",
		nil, nil)
	sourceUpdatedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "source", "last_updated_timestamp_seconds"),
		"Time of the last successful ingestion per source.",
		[]string{"source"}, nil)
	scrapeErrorDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "scrape", "error"),
		"1 if the last store scrape failed.",
		nil, nil)
)

var statuses = []string{"EXCELLENT", "GOOD", "FAIR", "POOR"}

// StoreCollector reads store gauges on every scrape.
type StoreCollector struct {
	store   StoreReader
	sources SourceLister
	scopes  database.ScopeProvider
	timeout time.Duration
	logger  *zap.Logger
}

// NewStoreCollector creates a collector over the store. A nil scopes expects
// the store to work without a database scope, as in tests.
func NewStoreCollector(store StoreReader, sources SourceLister, scopes database.ScopeProvider, logger *zap.Logger) *StoreCollector {
	return &StoreCollector{
		store:   store,
		sources: sources,
		scopes:  scopes,
		timeout: DefaultScrapeTimeout,
		logger:  logger.Named("metrics"),
	}
}

var _ prometheus.Collector = (*StoreCollector)(nil)

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- observationsDesc
	ch <- qualityScoreDesc
	ch <- qualityStatusDesc
	ch <- lastValidationDesc
	ch <- sourceUpdatedDesc
	ch <- scrapeErrorDesc
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	failed := 0.0
	if err := c.collect(ctx, ch); err != nil {
		c.logger.Warn("Store scrape failed", zap.Error(err))
		failed = 1
	}
	ch <- prometheus.MustNewConstMetric(scrapeErrorDesc, prometheus.GaugeValue, failed)
}

func (c *StoreCollector) collect(ctx context.Context, ch chan<- prometheus.Metric) error {
	if c.scopes != nil {
		sctx, cleanup, err := c.scopes.WithScope(ctx, "metrics")
		if err != nil {
			return err
		}
		defer cleanup()
		ctx = sctx
	}

	counts, err := c.store.CountBySource(ctx)
	if err != nil {
		return err
	}
	for _, src := range models.AllSources {
		ch <- prometheus.MustNewConstMetric(observationsDesc, prometheus.GaugeValue, float64(counts[src]), string(src))
	}

	sources, err := c.sources.List(ctx)
	if err != nil {
		return err
	}
	for _, ds := range sources {
		if ds.LastUpdated == nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(sourceUpdatedDesc, prometheus.GaugeValue,
			float64(ds.LastUpdated.Unix()), string(ds.SourceCode))
	}

	run, err := c.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	ch <- prometheus.MustNewConstMetric(qualityScoreDesc, prometheus.GaugeValue, run.QualityScore)
	ch <- prometheus.MustNewConstMetric(lastValidationDesc, prometheus.GaugeValue, float64(run.FinishedAt.Unix()))
	for _, s := range statuses {
		v := 0.0
		if s == run.Status {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(qualityStatusDesc, prometheus.GaugeValue, v, s)
	}
	return nil
}

// HTTPMetrics records status server requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers the request metrics.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Observe records one served request.
func (m *HTTPMetrics) Observe(method, route string, code int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// NewRegistry returns a registry with the Go runtime and process collectors
// plus the given collectors.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(cs...)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
