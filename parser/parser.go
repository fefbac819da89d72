// Package parser turns catalog item markup into models.Record values.
package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var ratingWords = map[string]models.Rating{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ValidateRecord ensures a record is fit to be written as a row.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if r.Price == "" {
		return fmt.Errorf("record missing price for %s", r.Title)
	}
	if r.Availability == "" {
		return fmt.Errorf("record missing availability for %s", r.Title)
	}
	if r.URL == "" {
		return fmt.Errorf("record missing url for %s", r.Title)
	}
	return nil
}

// NormalizeAvailability trims spacing from the availability text.
func NormalizeAvailability(text string) string {
	return strings.TrimSpace(text)
}

// RatingToNumeric converts the textual rating to a numeric scale.
// Words outside One..Five map to models.RatingUnknown.
func RatingToNumeric(rating string) models.Rating {
	if r, ok := ratingWords[strings.TrimSpace(rating)]; ok {
		return r
	}
	return models.RatingUnknown
}
