package scraper

import (
	"bytes"
	"context"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/config"
)

type progressRecorder struct {
	updates [][2]int
	done    int
}

func (p *progressRecorder) Update(scraped, total int) {
	p.updates = append(p.updates, [2]int{scraped, total})
}

func (p *progressRecorder) Done() { p.done++ }

func newTestCrawler(fetcher Fetcher, cfg *config.Config, progress ProgressReporter) (*ReviewCrawler, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	if progress == nil {
		progress = noProgress{}
	}
	return &ReviewCrawler{
		fetcher:   fetcher,
		origin:    cfg.Origin(),
		pageLimit: cfg.ReviewPageLimit(),
		pageDelay: cfg.PageDelay(),
		sleep:     sleeper.sleep,
		progress:  progress,
		logger:    quietLogger(),
	}, sleeper
}

func TestCrawlBucketStopsAtFirstEmptyPage(t *testing.T) {
	href := "/inbox/reviews?ratings%5B%5D=5"
	fetcher := newFakeFetcher()
	fetcher.pages[testOrigin+href+"&page=1"] = reviewPage([]string{"one"})
	fetcher.pages[testOrigin+href+"&page=2"] = reviewPage([]string{"two"})
	fetcher.pages[testOrigin+href+"&page=3"] = reviewPage()
	fetcher.pages[testOrigin+href+"&page=4"] = reviewPage([]string{"never"})

	crawler, sleeper := newTestCrawler(fetcher, testConfig(), nil)
	content, err := crawler.crawlBucket(context.Background(), href, &reviewRun{})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if !reflect.DeepEqual(content, []string{"one\n", "two\n"}) {
		t.Fatalf("content = %q", content)
	}
	if len(fetcher.requests) != 3 {
		t.Fatalf("requests = %d, want 3: %v", len(fetcher.requests), fetcher.requests)
	}
	if len(sleeper.pauses) != 2 {
		t.Fatalf("pauses = %d, want 2 (none after the final page)", len(sleeper.pauses))
	}
}

func TestCrawlBucketTestModeCap(t *testing.T) {
	href := "/inbox/reviews?ratings%5B%5D=1"
	fetcher := newFakeFetcher()
	for page := 1; page <= 10; page++ {
		fetcher.pages[testOrigin+href+"&page="+strconv.Itoa(page)] = reviewPage([]string{"page " + strconv.Itoa(page)})
	}

	cfg := testConfig()
	cfg.TestMode = true
	crawler, _ := newTestCrawler(fetcher, cfg, nil)
	content, err := crawler.crawlBucket(context.Background(), href, &reviewRun{})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if len(fetcher.requests) != 3 {
		t.Fatalf("requests = %d, want 3 in test mode", len(fetcher.requests))
	}
	if !strings.HasSuffix(fetcher.requests[2], "&page=3") {
		t.Fatalf("last request = %q, want page 3", fetcher.requests[2])
	}
	if len(content) != 3 {
		t.Fatalf("content = %d reviews, want 3", len(content))
	}
}

func TestCrawlProgressMayExceedTotal(t *testing.T) {
	href := "/inbox/reviews?ratings%5B%5D=5"
	fetcher := newFakeFetcher()
	fetcher.pages[testOrigin+href+"&page=1"] = reviewPage([]string{"a"}, []string{"b"}, []string{"c"})
	fetcher.pages[testOrigin+href+"&page=2"] = reviewPage()

	page := `<div class="app-reviews-metrics"><ul><li><div><span>3</span><a href="` + href + `">3</a></div></li></ul></div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	progress := &progressRecorder{}
	crawler, _ := newTestCrawler(fetcher, testConfig(), progress)
	total := 2
	reviews, err := crawler.Crawl(context.Background(), doc.Selection, &total)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if got := reviews["5-star"]; got.Count != 3 || len(got.Content) != 3 {
		t.Fatalf("5-star = %+v", got)
	}
	if len(reviews) != 5 {
		t.Fatalf("buckets = %d, want all five", len(reviews))
	}
	want := [][2]int{{1, 2}, {2, 2}, {3, 2}}
	if !reflect.DeepEqual(progress.updates, want) {
		t.Fatalf("progress = %v, want %v", progress.updates, want)
	}
	if progress.done != 1 {
		t.Fatalf("progress done = %d, want 1", progress.done)
	}
}

func TestExtractReviewsSkipsAdjacentLeavesOfSameBlock(t *testing.T) {
	page := `<div class="review"><div class="body"><div class="text">` +
		`<p class="tw-break-words"> First paragraph. </p>` +
		`<p class="tw-break-words">Second paragraph.</p>` +
		`<p>Plain tail</p>` +
		`</div></div></div>`
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(page)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := ExtractReviews(doc.Selection)
	want := []string{"First paragraph.\nSecond paragraph.\nPlain tail\n"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reviews = %q, want %q", got, want)
	}
}

func TestExtractReviewsNoLeaves(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>nothing here</p>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := ExtractReviews(doc.Selection); len(got) != 0 {
		t.Fatalf("reviews = %q, want none", got)
	}
}

func TestReviewPageURL(t *testing.T) {
	crawler, _ := newTestCrawler(newFakeFetcher(), testConfig(), nil)

	tests := []struct {
		href string
		page int
		want string
	}{
		{href: "/inbox/reviews?ratings%5B%5D=5", page: 1, want: testOrigin + "/inbox/reviews?ratings%5B%5D=5&page=1"},
		{href: "/inbox/reviews", page: 7, want: testOrigin + "/inbox/reviews?page=7"},
		{href: "https://other.example.test/r?x=1", page: 2, want: "https://other.example.test/r?x=1&page=2"},
	}
	for _, tt := range tests {
		if got := crawler.pageURL(tt.href, tt.page); got != tt.want {
			t.Fatalf("pageURL(%q, %d) = %q, want %q", tt.href, tt.page, got, tt.want)
		}
	}
}

func TestTerminalProgress(t *testing.T) {
	var b strings.Builder
	progress := NewTerminalProgress(&b, 10)

	progress.Update(5, 10)
	if !strings.Contains(b.String(), "[#####.....]") || !strings.Contains(b.String(), "(5/10)") {
		t.Fatalf("unexpected bar %q", b.String())
	}

	b.Reset()
	progress.Update(15, 10)
	if !strings.Contains(b.String(), "[##########]") || !strings.Contains(b.String(), "150.0%") {
		t.Fatalf("bar should saturate while percent keeps counting: %q", b.String())
	}

	b.Reset()
	progress.Done()
	progress.Done()
	if b.String() != "\n" {
		t.Fatalf("done should end the line once, got %q", b.String())
	}
}
