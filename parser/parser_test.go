package parser

import (
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *models.Record
		wantErr bool
	}{
		{
			name: "valid record",
			record: &models.Record{
				Title:        "Test Book",
				Price:        "£10.00",
				Rating:       5,
				Availability: "In stock",
				URL:          "http://example.com",
			},
			wantErr: false,
		},
		{
			name: "placeholders are valid",
			record: &models.Record{
				Title:        "Test Book",
				Price:        models.Placeholder,
				Rating:       models.RatingUnknown,
				Availability: models.Placeholder,
				URL:          models.Placeholder,
			},
			wantErr: false,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: true,
		},
		{
			name: "missing title",
			record: &models.Record{
				Title:        "  ",
				Price:        "£10.00",
				Availability: "In stock",
				URL:          "http://example.com",
			},
			wantErr: true,
		},
		{
			name: "missing price column",
			record: &models.Record{
				Title:        "Test Book",
				Availability: "In stock",
				URL:          "http://example.com",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRatingToNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected models.Rating
	}{
		{input: "One", expected: 1},
		{input: "Two", expected: 2},
		{input: "Three", expected: 3},
		{input: "Four", expected: 4},
		{input: "Five", expected: 5},
		{input: " Five ", expected: 5},
		{input: "Zero", expected: models.RatingUnknown},
		{input: "Six", expected: models.RatingUnknown},
		{input: "three", expected: models.RatingUnknown},
		{input: "", expected: models.RatingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RatingToNumeric(tt.input); got != tt.expected {
				t.Errorf("RatingToNumeric(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeAvailability(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with whitespace",
			input:    "\n\n    In stock (22 available)  \n",
			expected: "In stock (22 available)",
		},
		{
			name:     "no whitespace",
			input:    "In stock",
			expected: "In stock",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeAvailability(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeAvailability(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
