// Package parser holds the value normalizers and record checks shared by the
// scrapers and the output pipeline.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-apps/models"
)

// ValidateApp ensures the scraper captured the fields a record is useless without.
func ValidateApp(a *models.App) error {
	if a == nil {
		return fmt.Errorf("app is nil")
	}
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("app missing url")
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("app missing title for %s", a.URL)
	}
	return nil
}

// BetweenParens returns the text between the first "(" and the following ")".
func BetweenParens(text string) (string, error) {
	open := strings.Index(text, "(")
	if open < 0 {
		return "", fmt.Errorf("no opening parenthesis in %q", text)
	}
	rest := text[open+1:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return rest, nil
	}
	return rest[:end], nil
}

// StripQuery drops everything from the first "?" onwards.
func StripQuery(link string) string {
	if i := strings.Index(link, "?"); i >= 0 {
		return link[:i]
	}
	return link
}
