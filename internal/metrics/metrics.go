package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the app and server packages.
type Recorder interface {
	ObserveHTTP(route string, status int, elapsed time.Duration)
	ObserveLLM(operation string, err error, elapsed time.Duration)
	IncQuotaDenied(kind string)
	AddUnresolvedItemRefs(n int)
	Handler() http.Handler
}

// Collector exports metrics on its own registry.
type Collector struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	llmRequests     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	quotaDenied     *prometheus.CounterVec
	unresolvedItems prometheus.Counter
}

// New returns a Prometheus recorder, or a no-op recorder when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return Noop{}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gauge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gauge_llm_requests_total",
			Help: "Total number of model calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gauge_llm_request_duration_seconds",
			Help:    "Model call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"operation"}),
		quotaDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gauge_quota_denied_total",
			Help: "Requests rejected by free-tier quota or rate limit",
		}, []string{"kind"}),
		unresolvedItems: factory.NewCounter(prometheus.CounterOpts{
			Name: "gauge_unresolved_item_refs_total",
			Help: "Wardrobe item references in model replies that matched no closet item",
		}),
	}
}

func (c *Collector) ObserveHTTP(route string, status int, _ time.Duration) {
	c.httpRequests.WithLabelValues(route, statusBucket(status)).Inc()
}

func (c *Collector) ObserveLLM(operation string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.llmRequests.WithLabelValues(operation, outcome).Inc()
	c.llmDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (c *Collector) IncQuotaDenied(kind string) {
	c.quotaDenied.WithLabelValues(kind).Inc()
}

func (c *Collector) AddUnresolvedItemRefs(n int) {
	if n > 0 {
		c.unresolvedItems.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}

// Noop discards all observations.
type Noop struct{}

func (Noop) ObserveHTTP(string, int, time.Duration)  {}
func (Noop) ObserveLLM(string, error, time.Duration) {}
func (Noop) IncQuotaDenied(string)                   {}
func (Noop) AddUnresolvedItemRefs(int)               {}
func (Noop) Handler() http.Handler                   { return http.NotFoundHandler() }
