package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-scrape-apps/batch"
	"github.com/aluiziolira/go-scrape-apps/config"
	"github.com/aluiziolira/go-scrape-apps/models"
)

// ThreeLetterKeywords returns every lower-case three letter combination in
// lexical order, aaa through zzz.
func ThreeLetterKeywords() []string {
	keywords := make([]string, 0, 26*26*26)
	for a := 'a'; a <= 'z'; a++ {
		for b := 'a'; b <= 'z'; b++ {
			for c := 'a'; c <= 'z'; c++ {
				keywords = append(keywords, string([]rune{a, b, c}))
			}
		}
	}
	return keywords
}

type autocompleteResponse struct {
	Searches []struct {
		Name string `json:"name"`
	} `json:"searches"`
}

// TermHandler asks the store's autocomplete endpoint for suggestions on a
// keyword and records every suggested search term.
type TermHandler struct {
	fetcher Fetcher
	origin  string
	sink    LineSink
	metrics *Metrics
	logger  *slog.Logger
}

// NewTermHandler builds a TermHandler writing terms to sink.
func NewTermHandler(fetcher Fetcher, cfg *config.Config, sink LineSink, metrics *Metrics, logger *slog.Logger) *TermHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TermHandler{
		fetcher: fetcher,
		origin:  cfg.Origin(),
		sink:    sink,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *TermHandler) endpoint(keyword string) string {
	return h.origin + "/search/autocomplete?v=3&q=" + url.QueryEscape(keyword) + "&st_source=autocomplete"
}

func (h *TermHandler) Handle(ctx context.Context, keyword string) (batch.Outcome, error) {
	endpoint := h.endpoint(keyword)

	resp, err := h.fetcher.Fetch(ctx, endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return batch.Outcome{}, ctxErr
		}
		if StatusCode(err) != 0 {
			h.logger.Debug("autocomplete returned no suggestions",
				slog.String("keyword", keyword),
				slog.Int("status", StatusCode(err)),
			)
			return batch.Outcome{Summary: fmt.Sprintf("Got 0 terms from %s", keyword)}, nil
		}
		return batch.Outcome{Errors: models.ErrorLog{"HTTP Error - " + endpoint}}, nil
	}

	terms, err := ParseAutocomplete(resp.Body)
	if err != nil {
		h.logger.Debug("autocomplete decode failed", slog.String("keyword", keyword), slog.Any("error", err))
		return batch.Outcome{Errors: models.ErrorLog{fmt.Sprintf("Failed to get search terms for keyword '%s'", keyword)}}, nil
	}
	if err := h.sink.WriteLines(terms); err != nil {
		return batch.Outcome{}, fmt.Errorf("store terms: %w", err)
	}
	h.metrics.AddDiscovered("term", len(terms))

	return batch.Outcome{Summary: fmt.Sprintf("Got %d terms from %s", len(terms), keyword)}, nil
}

// ParseAutocomplete decodes an autocomplete body. The endpoint sometimes
// quotes with single quotes, so those are turned into double quotes first.
func ParseAutocomplete(body []byte) ([]string, error) {
	normalized := strings.ReplaceAll(string(body), "'", `"`)

	var payload autocompleteResponse
	if err := json.Unmarshal([]byte(normalized), &payload); err != nil {
		return nil, fmt.Errorf("decode autocomplete: %w", err)
	}

	terms := make([]string, 0, len(payload.Searches))
	for _, search := range payload.Searches {
		name := strings.TrimSpace(search.Name)
		if name == "" {
			continue
		}
		terms = append(terms, name)
	}
	return terms, nil
}
