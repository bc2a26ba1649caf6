package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/aluiziolira/go-scrape-apps/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SearchHeaders are sent with search page requests so the store answers with
// the bare results frame.
func SearchHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Turbo-Frame", "search_page")
	return headers
}

// LineSink appends lines to an output file.
type LineSink interface {
	WriteLines(lines []string) error
}

// LinkHandler runs one search per work item and records app links it has not
// seen before.
type LinkHandler struct {
	fetcher Fetcher
	origin  string
	sink    LineSink
	seen    *lru.Cache[string, struct{}]
	metrics *Metrics
	logger  *slog.Logger
}

// NewLinkHandler builds a LinkHandler. known holds links already on disk;
// they are never written again.
func NewLinkHandler(fetcher Fetcher, cfg *config.Config, sink LineSink, known []string, metrics *Metrics, logger *slog.Logger) (*LinkHandler, error) {
	// An evicted link would be written again, so the table must hold every
	// known link with room left for new ones.
	if len(known) >= cfg.LinkCacheSize {
		return nil, fmt.Errorf("link cache size %d must exceed the %d known links", cfg.LinkCacheSize, len(known))
	}
	seen, err := lru.New[string, struct{}](cfg.LinkCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create link table: %w", err)
	}
	for _, link := range known {
		seen.Add(parser.StripQuery(link), struct{}{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkHandler{
		fetcher: fetcher,
		origin:  cfg.Origin(),
		sink:    sink,
		seen:    seen,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (h *LinkHandler) Handle(ctx context.Context, term string) (batch.Outcome, error) {
	searchURL := h.origin + "/search?q=" + url.QueryEscape(term)

	resp, err := h.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return batch.Outcome{}, ctxErr
		}
		if StatusCode(err) != 0 {
			h.logger.Debug("search returned no page",
				slog.String("url", searchURL),
				slog.Int("status", StatusCode(err)),
			)
			return batch.Outcome{Summary: fmt.Sprintf("Scraped 0 app links from %s", searchURL)}, nil
		}
		return batch.Outcome{Errors: models.ErrorLog{"HTTP Error - " + searchURL}}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return batch.Outcome{Errors: models.ErrorLog{"Scraper Error - " + searchURL}}, nil
	}

	var fresh []string
	for _, link := range ExtractAppLinks(doc.Selection) {
		if h.seen.Contains(link) {
			continue
		}
		h.seen.Add(link, struct{}{})
		fresh = append(fresh, link)
	}
	if err := h.sink.WriteLines(fresh); err != nil {
		return batch.Outcome{}, fmt.Errorf("store links: %w", err)
	}
	h.metrics.AddDiscovered("link", len(fresh))

	return batch.Outcome{Summary: fmt.Sprintf("Scraped %d app links from %s", len(fresh), searchURL)}, nil
}

// ExtractAppLinks returns the app detail links on a search results page in
// document order, without their query strings and without repeats.
func ExtractAppLinks(root *goquery.Selection) []string {
	var links []string
	seen := make(map[string]struct{})
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "search_id") || strings.Count(href, "/") != 3 {
			return
		}
		link := parser.StripQuery(href)
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}
