package scraper

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-apps/models"
	"github.com/aluiziolira/go-scrape-apps/parser"
)

// freeMarker flags an app without paid plans. It is matched against the raw
// markup of the price overview, so a wording change on the page breaks it.
const freeMarker = "Price: Free"

// query is a named lookup against the detail page. A query that matches
// nothing fails with its name so layout drift is reported per query.
type query struct {
	name string
	find func(root *goquery.Selection) *goquery.Selection
}

func (q query) in(root *goquery.Selection) (*goquery.Selection, error) {
	sel := q.find(root)
	if sel == nil || sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", errMissing, q.name)
	}
	return sel, nil
}

var (
	headingQuery = query{"heading", func(root *goquery.Selection) *goquery.Selection {
		return root.Find("h1").First()
	}}

	// The heading block container holds the image column first and the
	// overview column second.
	headerQuery = query{"header", func(root *goquery.Selection) *goquery.Selection {
		return headingQuery.find(root).Parent().Parent().Parent()
	}}

	imageQuery = query{"image", func(root *goquery.Selection) *goquery.Selection {
		return headerQuery.find(root).Children().Eq(0).Find("div").First().Find("img").First()
	}}

	overviewQuery = query{"overview", func(root *goquery.Selection) *goquery.Selection {
		return headerQuery.find(root).Children().Eq(1).Children().Eq(1)
	}}

	priceOverviewQuery = query{"price overview", func(root *goquery.Selection) *goquery.Selection {
		return headerQuery.find(root).Children().Eq(1).Find("div").First()
	}}

	aboutQuery = query{"about", func(root *goquery.Selection) *goquery.Selection {
		return root.Find("h2").FilterFunction(func(_ int, h *goquery.Selection) bool {
			return strings.TrimSpace(h.Text()) == "About this app"
		}).First().Parent().Find("div").First()
	}}

	pricingQuery = query{"pricing plans", func(root *goquery.Selection) *goquery.Selection {
		return root.Find("#adp-pricing").First().Children().Eq(1).Children().Eq(0).Children()
	}}

	reviewMetricsQuery = query{"review metrics", func(root *goquery.Selection) *goquery.Selection {
		return root.Find("div.app-reviews-metrics").First().Find("li")
	}}
)

// SectionKind identifies a labelled block of the "About this app" section.
type SectionKind int

const (
	SectionUnknown SectionKind = iota
	SectionLaunched
	SectionCategories
)

func (k SectionKind) String() string {
	switch k {
	case SectionLaunched:
		return "Launched"
	case SectionCategories:
		return "Categories"
	default:
		return "Unknown"
	}
}

// ClassifySection maps a section label to its kind.
func ClassifySection(label string) SectionKind {
	switch strings.TrimSpace(label) {
	case "Launched":
		return SectionLaunched
	case "Categories":
		return SectionCategories
	default:
		return SectionUnknown
	}
}

// extraction collects the failures of one app extraction.
type extraction struct {
	url     string
	errors  models.ErrorLog
	logger  *slog.Logger
	metrics *Metrics
}

func (x *extraction) fail(name string, err error) {
	x.errors.Add("Failed to scrape " + name)
	x.metrics.IncFieldError(name)
	x.logger.Debug("field extraction failed",
		slog.String("url", x.url),
		slog.String("field", name),
		slog.Any("error", err),
	)
}

// extract runs fn and stores its value in dst. On failure dst is left as is
// and the failure is recorded under name.
func extract[T any](x *extraction, name string, dst *T, fn func() (T, error)) bool {
	value, err := fn()
	if err != nil {
		x.fail(name, err)
		return false
	}
	*dst = value
	return true
}

func textOf(sel *goquery.Selection, what string) (string, error) {
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", errMissing, what)
	}
	return strings.TrimSpace(sel.Text()), nil
}

func attrOf(sel *goquery.Selection, attr, what string) (string, error) {
	value, ok := sel.Attr(attr)
	if !ok {
		return "", fmt.Errorf("%w: %s[%s]", errMissing, what, attr)
	}
	return value, nil
}

func parseTitle(root *goquery.Selection) (string, error) {
	heading, err := headingQuery.in(root)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(heading.Text()), nil
}

func parseImageURL(root *goquery.Selection) (string, error) {
	img, err := imageQuery.in(root)
	if err != nil {
		return "", err
	}
	return attrOf(img, "src", "image")
}

func parseRating(block *goquery.Selection) (*float64, error) {
	text, err := textOf(block.Find("span").First(), "rating span")
	if err != nil {
		return nil, err
	}
	inner, err := parser.BetweenParens(text)
	if err != nil {
		return nil, err
	}
	rating, err := strconv.ParseFloat(strings.TrimSpace(inner), 64)
	if err != nil {
		return nil, fmt.Errorf("parse rating %q: %w", inner, err)
	}
	return &rating, nil
}

func parseReviewCount(block *goquery.Selection) (*int, error) {
	text, err := textOf(block, "review count")
	if err != nil {
		return nil, err
	}
	count, err := parser.FirstNumber(text)
	if err != nil {
		return nil, err
	}
	return &count, nil
}

func parseDeveloperName(block *goquery.Selection) (string, error) {
	return textOf(block.Find("a").First(), "developer link")
}

func parseDeveloperLink(block *goquery.Selection, origin string) (string, error) {
	href, err := attrOf(block.Find("a[href]").First(), "href", "developer link")
	if err != nil {
		return "", err
	}
	return origin + href, nil
}

func parseLaunched(section *goquery.Selection) (string, error) {
	return textOf(section.Find("p").Eq(1), "launch date")
}

func parseCategories(section *goquery.Selection) ([]string, error) {
	categories := []string{}
	section.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		categories = append(categories, strings.TrimSpace(link.Text()))
	})
	return categories, nil
}

func parsePricePlans(root *goquery.Selection) ([]string, error) {
	overview, err := priceOverviewQuery.in(root)
	if err != nil {
		return nil, err
	}
	markup, err := goquery.OuterHtml(overview)
	if err != nil {
		return nil, fmt.Errorf("render price overview: %w", err)
	}
	if strings.Contains(markup, freeMarker) {
		return []string{"Free"}, nil
	}

	cards, err := pricingQuery.in(root)
	if err != nil {
		return nil, err
	}
	plans := make([]string, 0, cards.Length())
	for i := 0; i < cards.Length(); i++ {
		card := cards.Eq(i).Find("div.app-details-pricing-plan-card").First()
		name, err := textOf(card.Find("h3").First(), fmt.Sprintf("plan %d heading", i+1))
		if err != nil {
			return nil, err
		}
		plans = append(plans, name)
	}
	return plans, nil
}
