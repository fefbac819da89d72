package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// CSS selectors for one product_pod item.
const (
	ItemSelector     = "article.product_pod"
	NextSelector     = "li.next a"
	headingSelector  = "h3 a"
	priceSelector    = ".price_color"
	ratingSelector   = ".star-rating"
	instockSelector  = ".instock"
	fallbackSelector = ".availability"
)

// Field names used in FieldError and degradation counters.
const (
	FieldPrice        = "price"
	FieldRating       = "rating"
	FieldAvailability = "availability"
	FieldURL          = "url"
)

var (
	// ErrMissingTitle means the item has no heading anchor title; the item is unusable.
	ErrMissingTitle = errors.New("parser: missing title")
	// ErrFieldMissing means the element for an optional field is absent or empty.
	ErrFieldMissing = errors.New("parser: field missing")
	// ErrUnknownRating means the star-rating word is outside One..Five.
	ErrUnknownRating = errors.New("parser: unknown rating")
)

// FieldError records why an optional field fell back to its placeholder.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// Extraction is the outcome of a successful Extract call.
type Extraction struct {
	Record   *models.Record
	Degraded []FieldError
}

// Extract maps one item node to a record. Only a missing title fails the item;
// every other field degrades to its placeholder and is reported in Degraded.
func Extract(item *goquery.Selection, base *url.URL) (*Extraction, error) {
	if item == nil || item.Length() == 0 {
		return nil, fmt.Errorf("empty item: %w", ErrMissingTitle)
	}

	anchor := item.Find(headingSelector).First()
	if anchor.Length() == 0 {
		return nil, fmt.Errorf("no heading anchor: %w", ErrMissingTitle)
	}
	title, ok := anchor.Attr("title")
	if !ok || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("heading anchor has no title attribute: %w", ErrMissingTitle)
	}

	out := &Extraction{Record: &models.Record{Title: title}}
	rec := out.Record

	rec.Price = parseField(out, FieldPrice, models.Placeholder, func() (string, error) {
		return parsePrice(item)
	})
	rec.Rating = parseField(out, FieldRating, models.RatingUnknown, func() (models.Rating, error) {
		return parseRating(item)
	})
	rec.Availability = parseField(out, FieldAvailability, models.Placeholder, func() (string, error) {
		return parseAvailability(item)
	})
	rec.URL = parseField(out, FieldURL, models.Placeholder, func() (string, error) {
		return parseURL(anchor, base)
	})

	return out, nil
}

// parseField runs one field parser, turning an error or a panic into the fallback value.
func parseField[T any](out *Extraction, name string, fallback T, parse func() (T, error)) (value T) {
	defer func() {
		if r := recover(); r != nil {
			out.Degraded = append(out.Degraded, FieldError{Field: name, Err: fmt.Errorf("recovered: %v", r)})
			value = fallback
		}
	}()

	v, err := parse()
	if err != nil {
		out.Degraded = append(out.Degraded, FieldError{Field: name, Err: err})
		return fallback
	}
	return v
}

func parsePrice(item *goquery.Selection) (string, error) {
	sel := item.Find(priceSelector).First()
	if sel.Length() == 0 {
		return "", ErrFieldMissing
	}
	price := strings.TrimSpace(sel.Text())
	if price == "" {
		return "", ErrFieldMissing
	}
	return price, nil
}

func parseRating(item *goquery.Selection) (models.Rating, error) {
	sel := item.Find(ratingSelector).First()
	if sel.Length() == 0 {
		return models.RatingUnknown, ErrFieldMissing
	}
	tokens := strings.Fields(sel.AttrOr("class", ""))
	if len(tokens) < 2 {
		return models.RatingUnknown, ErrFieldMissing
	}
	rating := RatingToNumeric(tokens[1])
	if !rating.Known() {
		return models.RatingUnknown, fmt.Errorf("%q: %w", tokens[1], ErrUnknownRating)
	}
	return rating, nil
}

func parseAvailability(item *goquery.Selection) (string, error) {
	sel := item.Find(instockSelector).First()
	if sel.Length() == 0 {
		sel = item.Find(fallbackSelector).First()
	}
	if sel.Length() == 0 {
		return "", ErrFieldMissing
	}
	text := NormalizeAvailability(sel.Text())
	if text == "" {
		return "", ErrFieldMissing
	}
	return text, nil
}

func parseURL(anchor *goquery.Selection, base *url.URL) (string, error) {
	href := strings.TrimSpace(anchor.AttrOr("href", ""))
	if href == "" {
		return "", ErrFieldMissing
	}
	return ResolveURL(base, href)
}

// ResolveURL resolves href against base with RFC 3986 reference resolution.
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative href %q without base url", href)
		}
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
