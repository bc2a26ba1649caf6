// Package models defines data structures for the scraper.
package models

import (
	"fmt"
	"time"
)

// RatingBuckets lists the review bucket keys in page order, highest rating first.
var RatingBuckets = []string{"5-star", "4-star", "3-star", "2-star", "1-star"}

// BucketKey returns the review bucket key for a star rating.
func BucketKey(stars int) string {
	return fmt.Sprintf("%d-star", stars)
}

// ReviewBucket holds the reviews listed under one star rating.
type ReviewBucket struct {
	Count   int      `json:"count"`
	Content []string `json:"content"`
}

// App represents one marketplace listing.
type App struct {
	URL           string                  `json:"url"`
	Title         string                  `json:"title"`
	ImageURL      string                  `json:"imageUrl"`
	Rating        *float64                `json:"rating"`
	ReviewCount   *int                    `json:"reviewCount"`
	DeveloperName string                  `json:"developerName"`
	DeveloperLink string                  `json:"developerLink"`
	DateLaunched  string                  `json:"dateLaunched"`
	Categories    []string                `json:"categories"`
	PricePlans    []string                `json:"pricePlans"`
	Reviews       map[string]ReviewBucket `json:"reviews"`
	ScrapedAt     time.Time               `json:"scrapedAt"`
}

// NewApp returns an App for url with every field at its zero value.
func NewApp(url string) *App {
	return &App{
		URL:        url,
		Categories: []string{},
		PricePlans: []string{},
		Reviews:    EmptyReviews(),
	}
}

// EmptyReviews returns the five rating buckets with no reviews.
func EmptyReviews() map[string]ReviewBucket {
	reviews := make(map[string]ReviewBucket, len(RatingBuckets))
	for _, key := range RatingBuckets {
		reviews[key] = ReviewBucket{Content: []string{}}
	}
	return reviews
}

// ReviewsScraped returns the number of review texts collected across all buckets.
func (a *App) ReviewsScraped() int {
	total := 0
	for _, bucket := range a.Reviews {
		total += len(bucket.Content)
	}
	return total
}

// ErrorLog is the ordered list of failures recorded while extracting one item.
type ErrorLog []string

// Add appends a message to the log.
func (l *ErrorLog) Add(message string) {
	*l = append(*l, message)
}

// RunReport holds the aggregate outcome of one batch run.
type RunReport struct {
	Name            string
	TotalItems      int
	StartIndex      int
	Attempted       int
	ItemsWithErrors int
	TotalErrors     int
	Completed       bool
	StartTime       time.Time
	EndTime         time.Time
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
