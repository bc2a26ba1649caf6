package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/aluiziolira/go-scrape-apps/parser"
)

const reviewTextSelector = "p.tw-break-words"

// ReviewCrawler walks the paginated review listings of one app, one rating
// bucket at a time.
type ReviewCrawler struct {
	fetcher   Fetcher
	origin    string
	pageLimit int
	pageDelay time.Duration
	sleep     batch.Sleeper
	progress  ProgressReporter
	metrics   *Metrics
	logger    *slog.Logger
}

// reviewRun carries the counters of a single Crawl call.
type reviewRun struct {
	scraped int
	total   int
}

// Crawl reads the review metrics block under root and collects the reviews
// of every rating bucket. total is the app's overall review count and only
// feeds the progress display.
func (c *ReviewCrawler) Crawl(ctx context.Context, root *goquery.Selection, total *int) (map[string]models.ReviewBucket, error) {
	items, err := reviewMetricsQuery.in(root)
	if err != nil {
		return nil, err
	}

	run := &reviewRun{}
	if total != nil {
		run.total = *total
	}
	defer c.progress.Done()

	reviews := models.EmptyReviews()
	for i, n := 0, min(items.Length(), len(models.RatingBuckets)); i < n; i++ {
		key := models.BucketKey(len(models.RatingBuckets) - i)
		tally := items.Eq(i).Children().Last()

		countText, err := textOf(tally.Find("span").First(), key+" count")
		if err != nil {
			return nil, err
		}
		count, err := parser.NormalizeMagnitude(strings.ReplaceAll(countText, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("%s count: %w", key, err)
		}

		bucket := models.ReviewBucket{Count: count, Content: []string{}}
		if href, ok := tally.Find("a[href]").First().Attr("href"); ok {
			content, err := c.crawlBucket(ctx, href, run)
			if err != nil {
				return nil, fmt.Errorf("%s reviews: %w", key, err)
			}
			bucket.Content = content
		}
		reviews[key] = bucket
	}
	return reviews, nil
}

// crawlBucket fetches pages 1..pageLimit of the listing at href and stops
// early at the first page without reviews.
func (c *ReviewCrawler) crawlBucket(ctx context.Context, href string, run *reviewRun) ([]string, error) {
	content := []string{}
	for page := 1; page <= c.pageLimit; page++ {
		if page > 1 {
			if err := c.sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}

		pageURL := c.pageURL(href, page)
		resp, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		c.metrics.IncReviewPages()

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return nil, fmt.Errorf("parse review page %s: %w", pageURL, err)
		}

		texts := ExtractReviews(doc.Selection)
		if len(texts) == 0 {
			c.logger.Debug("review listing exhausted",
				slog.String("url", pageURL),
				slog.Int("page", page),
			)
			break
		}
		for _, text := range texts {
			content = append(content, text)
			run.scraped++
			c.metrics.IncReviews()
			c.progress.Update(run.scraped, run.total)
		}
	}
	return content, nil
}

func (c *ReviewCrawler) pageURL(href string, page int) string {
	base := href
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		base = c.origin + href
	}
	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return base + sep + "page=" + strconv.Itoa(page)
}

// ExtractReviews returns the review texts on one listing page. Each review
// is the trimmed text of every paragraph in its text container, each
// followed by a newline. Consecutive text leaves of the same review block
// yield a single review.
func ExtractReviews(root *goquery.Selection) []string {
	var (
		reviews []string
		last    *goquery.Selection
	)
	root.Find(reviewTextSelector).Each(func(_ int, leaf *goquery.Selection) {
		block := leaf.Parent().Parent().Parent()
		if block.Length() == 0 {
			return
		}
		if last != nil && block.Get(0) == last.Get(0) {
			return
		}
		last = block

		var b strings.Builder
		leaf.Parent().Find("p").Each(func(_ int, p *goquery.Selection) {
			b.WriteString(strings.TrimSpace(p.Text()))
			b.WriteString("\n")
		})
		reviews = append(reviews, b.String())
	})
	return reviews
}
