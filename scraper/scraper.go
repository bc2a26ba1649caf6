// Package scraper fetches app store pages and extracts app records, review
// texts, app links and search terms from them.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/gocolly/colly/v2"
)

// Response is one fetched page.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves one page. Any transport failure or non-2xx status is
// returned as a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// CollyFetcher issues synchronous GET requests through a colly collector.
type CollyFetcher struct {
	collector *colly.Collector
	headers   http.Header
	metrics   *Metrics
	logger    *slog.Logger
}

// NewCollyFetcher builds a fetcher restricted to the configured host. headers
// are sent with every request.
func NewCollyFetcher(cfg *config.Config, headers http.Header, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &CollyFetcher{
		collector: collector,
		headers:   headers,
		metrics:   metrics,
		logger:    slog.Default(),
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport, used to stub the network in tests.
func (f *CollyFetcher) WithTransport(transport http.RoundTripper) {
	f.collector.WithTransport(transport)
}

func (f *CollyFetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.metrics.IncRequest("started")
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
	})
}

// Fetch requests rawURL and blocks until the response has been read.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, f.headers.Clone())
	status, _ := reqCtx.GetAny("status").(int)
	if err == nil && (status < http.StatusOK || status >= http.StatusMultipleChoices) {
		err = errors.New(http.StatusText(status))
	}
	if err != nil {
		classified := classifyError(err, status)
		category := errorTypeLabel(classified)
		f.metrics.IncError(category)
		f.logger.Debug("request error",
			slog.String("url", rawURL),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: classified}
	}

	f.metrics.IncRequest("completed")
	body, _ := reqCtx.GetAny("body").([]byte)
	return &Response{URL: rawURL, StatusCode: status, Body: body}, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
			return ErrStatus{Code: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
