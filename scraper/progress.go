package scraper

import (
	"fmt"
	"io"
	"strings"
)

// ProgressReporter is told how many reviews have been collected for the app
// currently being scraped.
type ProgressReporter interface {
	Update(scraped, total int)
	Done()
}

type noProgress struct{}

func (noProgress) Update(int, int) {}
func (noProgress) Done()           {}

// TerminalProgress redraws a single progress line on w. The total is the
// review count shown on the app page, which can be lower than what the
// listing pages actually hold, so the bar saturates while the percentage
// keeps counting.
type TerminalProgress struct {
	w     io.Writer
	width int
	drawn bool
}

// NewTerminalProgress returns a bar of width cells drawn on w.
func NewTerminalProgress(w io.Writer, width int) *TerminalProgress {
	if width <= 0 {
		width = 40
	}
	return &TerminalProgress{w: w, width: width}
}

func (p *TerminalProgress) Update(scraped, total int) {
	percent := 0.0
	if total > 0 {
		percent = float64(scraped) / float64(total) * 100
	}
	filled := int(percent / 100 * float64(p.width))
	if filled > p.width {
		filled = p.width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", p.width-filled)
	fmt.Fprintf(p.w, "\rReviews [%s] %6.1f%% (%d/%d)", bar, percent, scraped, total)
	p.drawn = true
}

func (p *TerminalProgress) Done() {
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
