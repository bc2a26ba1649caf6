package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/aluiziolira/go-scrape-apps/models"
)

// Option customises an AppScraper.
type Option func(*AppScraper)

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *AppScraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(metrics *Metrics) Option {
	return func(s *AppScraper) {
		s.metrics = metrics
	}
}

// WithSleeper replaces the pause between review pages.
func WithSleeper(sleep batch.Sleeper) Option {
	return func(s *AppScraper) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithProgress sets where review progress is reported.
func WithProgress(progress ProgressReporter) Option {
	return func(s *AppScraper) {
		if progress != nil {
			s.progress = progress
		}
	}
}

// group is one independently failing part of the detail page.
type group struct {
	name string
	run  func(ctx context.Context, x *extraction, root *goquery.Selection, app *models.App)
}

// AppScraper extracts App records from detail pages.
type AppScraper struct {
	fetcher  Fetcher
	cfg      *config.Config
	origin   string
	reviews  *ReviewCrawler
	groups   []group
	sleep    batch.Sleeper
	progress ProgressReporter
	metrics  *Metrics
	logger   *slog.Logger
}

// NewAppScraper wires an AppScraper around fetcher.
func NewAppScraper(fetcher Fetcher, cfg *config.Config, opts ...Option) *AppScraper {
	s := &AppScraper{
		fetcher:  fetcher,
		cfg:      cfg,
		origin:   cfg.Origin(),
		sleep:    batch.Sleep,
		progress: noProgress{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.reviews = &ReviewCrawler{
		fetcher:   fetcher,
		origin:    s.origin,
		pageLimit: cfg.ReviewPageLimit(),
		pageDelay: cfg.PageDelay(),
		sleep:     s.sleep,
		progress:  s.progress,
		metrics:   s.metrics,
		logger:    s.logger,
	}
	s.groups = s.detailGroups()
	return s
}

func (s *AppScraper) detailGroups() []group {
	groups := []group{
		{name: "title", run: s.scrapeTitle},
		{name: "image", run: s.scrapeImage},
		{name: "overview", run: s.scrapeOverview},
		{name: "about", run: s.scrapeAbout},
		{name: "pricing", run: s.scrapePricing},
	}
	if !s.cfg.OmitReviews {
		groups = append(groups, group{name: "reviews", run: s.scrapeReviews})
	}
	return groups
}

// Scrape fetches url and extracts an App from it. It always returns an App;
// fields that could not be read keep their zero value and each failure adds
// one message to the returned log.
func (s *AppScraper) Scrape(ctx context.Context, url string) (*models.App, models.ErrorLog) {
	app := models.NewApp(url)
	app.ScrapedAt = time.Now().UTC()
	x := &extraction{url: url, logger: s.logger, metrics: s.metrics}

	resp, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		x.errors.Add("Failed to fetch HTML")
		s.logger.Debug("detail page fetch failed",
			slog.String("url", url),
			slog.Int("status", StatusCode(err)),
			slog.Any("error", err),
		)
		return app, x.errors
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		x.errors.Add("Failed to fetch HTML")
		s.logger.Debug("detail page parse failed", slog.String("url", url), slog.Any("error", err))
		return app, x.errors
	}

	for _, g := range s.groups {
		if ctx.Err() != nil {
			break
		}
		g.run(ctx, x, doc.Selection, app)
	}

	s.metrics.IncApps()
	return app, x.errors
}

func (s *AppScraper) scrapeTitle(_ context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	extract(x, "title", &app.Title, func() (string, error) {
		return parseTitle(root)
	})
}

func (s *AppScraper) scrapeImage(_ context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	extract(x, "image URL", &app.ImageURL, func() (string, error) {
		return parseImageURL(root)
	})
}

func (s *AppScraper) scrapeOverview(_ context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	block, err := overviewQuery.in(root)
	if err != nil {
		x.fail("app overview section", err)
		return
	}
	parts := block.Children()

	extract(x, "rating", &app.Rating, func() (*float64, error) {
		return parseRating(parts.Eq(0))
	})
	extract(x, "review count", &app.ReviewCount, func() (*int, error) {
		return parseReviewCount(parts.Eq(1))
	})

	if parts.Length() < 3 {
		x.fail("developer section", fmt.Errorf("%w: overview has %d parts, want 3", errMissing, parts.Length()))
		return
	}
	extract(x, "developer name", &app.DeveloperName, func() (string, error) {
		return parseDeveloperName(parts.Eq(2))
	})
	extract(x, "developer link", &app.DeveloperLink, func() (string, error) {
		return parseDeveloperLink(parts.Eq(2), s.origin)
	})
}

func (s *AppScraper) scrapeAbout(_ context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	container, err := aboutQuery.in(root)
	if err != nil {
		x.fail("about section", err)
		return
	}

	sections := container.Children()
	for i := 0; i < sections.Length(); i++ {
		section := sections.Eq(i)
		label, err := textOf(section.Find("p").First(), "section label")
		if err != nil {
			x.fail("about section", err)
			return
		}

		switch ClassifySection(label) {
		case SectionLaunched:
			extract(x, "date launched", &app.DateLaunched, func() (string, error) {
				return parseLaunched(section)
			})
		case SectionCategories:
			extract(x, "categories", &app.Categories, func() ([]string, error) {
				return parseCategories(section)
			})
		}
	}
}

func (s *AppScraper) scrapePricing(_ context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	extract(x, "pricing", &app.PricePlans, func() ([]string, error) {
		return parsePricePlans(root)
	})
}

func (s *AppScraper) scrapeReviews(ctx context.Context, x *extraction, root *goquery.Selection, app *models.App) {
	extract(x, "reviews", &app.Reviews, func() (map[string]models.ReviewBucket, error) {
		return s.reviews.Crawl(ctx, root, app.ReviewCount)
	})
}

// AppSink receives finished App records.
type AppSink interface {
	Process(apps []*models.App) error
}

// AppHandler scrapes one detail page per work item and hands the App to
// the sink.
type AppHandler struct {
	Scraper *AppScraper
	Sink    AppSink
}

func (h *AppHandler) Handle(ctx context.Context, url string) (batch.Outcome, error) {
	app, errs := h.Scraper.Scrape(ctx, url)
	if err := ctx.Err(); err != nil {
		return batch.Outcome{}, err
	}
	if err := h.Sink.Process([]*models.App{app}); err != nil {
		return batch.Outcome{}, fmt.Errorf("store app: %w", err)
	}

	summary := fmt.Sprintf("Scraped %s (%d categories, %d plans, %d reviews)",
		url, len(app.Categories), len(app.PricePlans), app.ReviewsScraped())
	return batch.Outcome{Errors: errs, Summary: summary}, nil
}
