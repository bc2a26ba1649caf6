package scraper

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/jarcoal/httpmock"
)

type lineRecorder struct {
	lines []string
	err   error
}

func (l *lineRecorder) WriteLines(lines []string) error {
	if l.err != nil {
		return l.err
	}
	l.lines = append(l.lines, lines...)
	return nil
}

const searchResults = `<html><body>
<a href="https://apps.example.test/inbox?search_id=abc&surface_detail=chat">Inbox</a>
<a href="https://apps.example.test/judgeme?search_id=abc">Judge.me</a>
<a href="https://apps.example.test/inbox?search_id=def">Inbox again</a>
<a href="https://apps.example.test/categories/chat?search_id=abc">Category</a>
<a href="https://apps.example.test/reviews">No search id</a>
<a>No href</a>
</body></html>`

func TestExtractAppLinks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchResults))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := ExtractAppLinks(doc.Selection)
	want := []string{"https://apps.example.test/inbox", "https://apps.example.test/judgeme"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
}

func TestLinkHandlerSkipsKnownLinks(t *testing.T) {
	fetcher, transport, metrics := newMockedFetcher(t, SearchHeaders())
	transport.RegisterResponder("GET", "http://example.test/search?q=live+chat",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Turbo-Frame") != "search_page" {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, searchResults), nil
		})

	cfg := testConfig()
	cfg.BaseURL = "http://example.test"
	sink := &lineRecorder{}
	known := []string{"https://apps.example.test/judgeme?search_id=old"}
	handler, err := NewLinkHandler(fetcher, cfg, sink, known, metrics, quietLogger())
	if err != nil {
		t.Fatalf("new link handler: %v", err)
	}

	outcome, err := handler.Handle(context.Background(), "live chat")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", outcome.Errors)
	}
	if !reflect.DeepEqual(sink.lines, []string{"https://apps.example.test/inbox"}) {
		t.Fatalf("written = %v", sink.lines)
	}
	if !strings.Contains(outcome.Summary, "1 app links") {
		t.Fatalf("summary = %q", outcome.Summary)
	}

	// A second search returning the same page adds nothing.
	if _, err := handler.Handle(context.Background(), "live chat"); err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if len(sink.lines) != 1 {
		t.Fatalf("written = %v, want no repeats", sink.lines)
	}
}

func TestLinkHandlerFailures(t *testing.T) {
	cfg := testConfig()

	t.Run("status is silent", func(t *testing.T) {
		handler, err := NewLinkHandler(newFakeFetcher(), cfg, &lineRecorder{}, nil, nil, quietLogger())
		if err != nil {
			t.Fatalf("new link handler: %v", err)
		}
		outcome, err := handler.Handle(context.Background(), "missing")
		if err != nil || len(outcome.Errors) != 0 {
			t.Fatalf("outcome = %+v, err = %v", outcome, err)
		}
	})

	t.Run("known links must fit the table", func(t *testing.T) {
		small := testConfig()
		small.LinkCacheSize = 2
		known := []string{testOrigin + "/inbox", testOrigin + "/judgeme"}
		if _, err := NewLinkHandler(newFakeFetcher(), small, &lineRecorder{}, known, nil, quietLogger()); err == nil {
			t.Fatalf("expected error when known links fill the table")
		}
		if _, err := NewLinkHandler(newFakeFetcher(), small, &lineRecorder{}, known[:1], nil, quietLogger()); err != nil {
			t.Fatalf("new link handler: %v", err)
		}
	})

	t.Run("transport failure is logged", func(t *testing.T) {
		fetcher := fetcherFunc(func(_ context.Context, rawURL string) (*Response, error) {
			return nil, &FetchError{URL: rawURL, Err: ErrConnection{Err: errors.New("refused")}}
		})
		handler, err := NewLinkHandler(fetcher, cfg, &lineRecorder{}, nil, nil, quietLogger())
		if err != nil {
			t.Fatalf("new link handler: %v", err)
		}
		outcome, err := handler.Handle(context.Background(), "inbox")
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		want := models.ErrorLog{"HTTP Error - " + testOrigin + "/search?q=inbox"}
		if !reflect.DeepEqual(outcome.Errors, want) {
			t.Fatalf("errors = %v, want %v", outcome.Errors, want)
		}
	})

	t.Run("sink failure aborts", func(t *testing.T) {
		fetcher := newFakeFetcher()
		fetcher.pages[testOrigin+"/search?q=inbox"] = searchResults
		handler, err := NewLinkHandler(fetcher, cfg, &lineRecorder{err: errors.New("disk full")}, nil, nil, quietLogger())
		if err != nil {
			t.Fatalf("new link handler: %v", err)
		}
		if _, err := handler.Handle(context.Background(), "inbox"); err == nil {
			t.Fatalf("expected sink failure")
		}
	})
}

type fetcherFunc func(ctx context.Context, rawURL string) (*Response, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return f(ctx, rawURL)
}

func TestThreeLetterKeywords(t *testing.T) {
	keywords := ThreeLetterKeywords()
	if len(keywords) != 17576 {
		t.Fatalf("keywords = %d, want 17576", len(keywords))
	}
	if keywords[0] != "aaa" || keywords[1] != "aab" || keywords[26] != "aba" || keywords[len(keywords)-1] != "zzz" {
		t.Fatalf("unexpected ordering: %v ... %v", keywords[:3], keywords[len(keywords)-1])
	}
}

func TestParseAutocomplete(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{name: "double quotes", body: `{"searches":[{"name":"inbox"},{"name":"invoice"}]}`, want: []string{"inbox", "invoice"}},
		{name: "single quotes", body: `{'searches':[{'name':'reviews'}]}`, want: []string{"reviews"}},
		{name: "no searches", body: `{"apps":[]}`, want: []string{}},
		{name: "entry without name", body: `{'searches':[{'name':'a'},{'title':'x'},{'name':' '}]}`, want: []string{"a"}},
		{name: "garbage", body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAutocomplete([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("terms = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTermHandler(t *testing.T) {
	endpoint := testOrigin + "/search/autocomplete?v=3&q=inb&st_source=autocomplete"
	fetcher := newFakeFetcher()
	fetcher.pages[endpoint] = `{'searches':[{'name':'inbox'},{'name':'inbox chat'}]}`
	fetcher.pages[testOrigin+"/search/autocomplete?v=3&q=bad&st_source=autocomplete"] = `not json`

	sink := &lineRecorder{}
	handler := NewTermHandler(fetcher, testConfig(), sink, nil, quietLogger())

	outcome, err := handler.Handle(context.Background(), "inb")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", outcome.Errors)
	}
	if !reflect.DeepEqual(sink.lines, []string{"inbox", "inbox chat"}) {
		t.Fatalf("terms = %v", sink.lines)
	}

	outcome, err = handler.Handle(context.Background(), "bad")
	if err != nil {
		t.Fatalf("handle bad: %v", err)
	}
	if !reflect.DeepEqual(outcome.Errors, models.ErrorLog{"Failed to get search terms for keyword 'bad'"}) {
		t.Fatalf("errors = %v", outcome.Errors)
	}

	outcome, err = handler.Handle(context.Background(), "zzz")
	if err != nil || len(outcome.Errors) != 0 {
		t.Fatalf("non-2xx should yield zero terms silently, got %+v, %v", outcome, err)
	}
	if len(sink.lines) != 2 {
		t.Fatalf("terms = %v, want unchanged", sink.lines)
	}
}
