// Package models defines data structures for the scraper.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Placeholder is written in place of a field that could not be parsed.
const Placeholder = "unknown"

// Rating is a 1-5 star rating. RatingUnknown marks an unparsed rating.
type Rating int

const RatingUnknown Rating = 0

// Known reports whether r is inside the 1-5 scale.
func (r Rating) Known() bool {
	return r >= 1 && r <= 5
}

func (r Rating) String() string {
	if !r.Known() {
		return Placeholder
	}
	return strconv.Itoa(int(r))
}

// MarshalJSON emits the number, or the placeholder string when unknown.
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.Known() {
		return json.Marshal(Placeholder)
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// Record represents one catalog item.
type Record struct {
	Title        string `csv:"title" json:"title"`
	Price        string `csv:"price" json:"price"`
	Rating       Rating `csv:"rating" json:"rating"`
	Availability string `csv:"availability" json:"availability"`
	URL          string `csv:"url" json:"url"`
}

// Row returns the record in CSV column order.
func (r *Record) Row() []string {
	return []string{r.Title, r.Price, r.Rating.String(), r.Availability, r.URL}
}

// CSVHeader matches the column order of Record.Row.
var CSVHeader = []string{"title", "price", "rating", "availability", "url"}

// Stop reasons reported in WalkResult.StopReason.
const (
	StopExhausted   = "exhausted"
	StopFetchFailed = "fetch_failed"
	StopMaxPages    = "max_pages"
	StopCycle       = "cycle"
	StopCancelled   = "cancelled"
)

// WalkResult holds the overall result of a catalog walk.
type WalkResult struct {
	Records            []*Record
	Pages              []string
	StartTime          time.Time
	EndTime            time.Time
	StopReason         string
	FetchErr           error
	ExtractionFailures int
	Degradations       map[string]int
	PersistErr         error
}

// Duration is the wall time between StartTime and EndTime.
func (r *WalkResult) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
