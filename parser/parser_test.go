package parser

import (
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-apps/models"
)

func TestNormalizeMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int
	}{
		{name: "thousands", input: "12k", expected: 12000},
		{name: "millions", input: "3.4m", expected: 3400000},
		{name: "bare k", input: "k", expected: 1000},
		{name: "bare m", input: "m", expected: 1000000},
		{name: "upper case", input: "2.5K", expected: 2500},
		{name: "plain integer", input: "57", expected: 57},
		{name: "plain decimal", input: "57.9", expected: 57},
		{name: "padded", input: " 8 ", expected: 8},
		{name: "float", input: 12.9, expected: 12},
		{name: "negative float", input: -12.9, expected: -12},
		{name: "int", input: 41, expected: 41},
		{name: "int64", input: int64(7), expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMagnitude(tt.input)
			if err != nil {
				t.Fatalf("NormalizeMagnitude(%v) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeMagnitude(%v) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeMagnitudeFormatError(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{name: "word", input: "many"},
		{name: "empty", input: ""},
		{name: "k with junk", input: "12kb"},
		{name: "both suffixes", input: "km"},
		{name: "unsupported type", input: []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeMagnitude(tt.input)
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("NormalizeMagnitude(%v) error = %v, want *FormatError", tt.input, err)
			}
		})
	}
}

func TestFirstNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{name: "with separators", input: "(1,204 reviews)", expected: 1204},
		{name: "first run only", input: "12 of 40", expected: 12},
		{name: "abbreviated count keeps leading digits", input: "1.2k", expected: 1},
		{name: "no digits", input: "No reviews", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FirstNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("FirstNumber(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		app     *models.App
		wantErr bool
	}{
		{name: "valid app", app: &models.App{URL: "https://apps.example.test/a", Title: "A"}},
		{name: "nil app", app: nil, wantErr: true},
		{name: "missing url", app: &models.App{Title: "A"}, wantErr: true},
		{name: "missing title", app: &models.App{URL: "https://apps.example.test/a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateApp(tt.app)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateApp() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBetweenParens(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "Rating (4.8)", expected: "4.8"},
		{input: "(4.8) out of (5)", expected: "4.8"},
		{input: "Rating (4.8", expected: "4.8"},
		{input: "4.8", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := BetweenParens(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BetweenParens(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("BetweenParens(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripQuery(t *testing.T) {
	if got := StripQuery("/app-one?search_id=1&surface_detail=x"); got != "/app-one" {
		t.Fatalf("StripQuery = %q, want /app-one", got)
	}
	if got := StripQuery("/app-two"); got != "/app-two" {
		t.Fatalf("StripQuery = %q, want /app-two", got)
	}
}
