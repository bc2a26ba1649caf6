package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	AppsScrapedTotal prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	FieldErrorsTotal *prometheus.CounterVec
	ReviewsTotal     prometheus.Counter
	ReviewPagesTotal prometheus.Counter
	DiscoveredTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	appsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_apps_scraped_total",
			Help: "Total number of app detail pages extracted.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	fieldErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_field_errors_total",
			Help: "Total number of field extraction failures by field.",
		},
		[]string{"field"},
	)
	reviews := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_reviews_scraped_total",
			Help: "Total number of review texts collected.",
		},
	)
	reviewPages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_review_pages_total",
			Help: "Total number of review listing pages fetched.",
		},
	)
	discovered := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_discovered_total",
			Help: "Total number of new links or search terms discovered.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requests, requestDuration, appsScraped, errorsTotal, fieldErrors, reviews, reviewPages, discovered)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		AppsScrapedTotal: appsScraped,
		ErrorsTotal:      errorsTotal,
		FieldErrorsTotal: fieldErrors,
		ReviewsTotal:     reviews,
		ReviewPagesTotal: reviewPages,
		DiscoveredTotal:  discovered,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncApps increments the apps scraped counter.
func (m *Metrics) IncApps() {
	if m == nil {
		return
	}
	m.AppsScrapedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncFieldError increments the field errors counter.
func (m *Metrics) IncFieldError(field string) {
	if m == nil {
		return
	}
	m.FieldErrorsTotal.WithLabelValues(field).Inc()
}

// IncReviews increments the reviews counter.
func (m *Metrics) IncReviews() {
	if m == nil {
		return
	}
	m.ReviewsTotal.Inc()
}

// IncReviewPages increments the review pages counter.
func (m *Metrics) IncReviewPages() {
	if m == nil {
		return
	}
	m.ReviewPagesTotal.Inc()
}

// AddDiscovered adds n newly discovered items of kind.
func (m *Metrics) AddDiscovered(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DiscoveredTotal.WithLabelValues(kind).Add(float64(n))
}
