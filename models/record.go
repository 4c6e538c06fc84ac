// Package models defines data structures for the catalog crawler.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// DetailsErrorKey is the extra-field key carrying a per-item detail
// extraction failure. Records with this key are still exported.
const DetailsErrorKey = "details_error"

// Record represents one product extracted from a listing page,
// optionally enriched from its detail page.
//
// The typed core mirrors the listing card; everything the detail page
// contributes (category, description, image_url, product-information
// table rows) lives in an ordered extras mapping so the assembler can
// reproduce first-seen column order.
type Record struct {
	Title        string
	Price        *float64
	Rating       *int
	Availability *string
	ProductURL   string

	extras    map[string]string
	extraKeys []string
}

// SetExtra stores a dynamic field, preserving insertion order for new keys.
func (r *Record) SetExtra(key, value string) {
	if r.extras == nil {
		r.extras = make(map[string]string)
	}
	if _, ok := r.extras[key]; !ok {
		r.extraKeys = append(r.extraKeys, key)
	}
	r.extras[key] = value
}

// Extra returns a dynamic field and whether it was set.
func (r *Record) Extra(key string) (string, bool) {
	v, ok := r.extras[key]
	return v, ok
}

// ExtraKeys returns the dynamic field keys in insertion order.
func (r *Record) ExtraKeys() []string {
	out := make([]string, len(r.extraKeys))
	copy(out, r.extraKeys)
	return out
}

// DetailsError returns the detail-extraction failure attached to this
// record, if any.
func (r *Record) DetailsError() (string, bool) {
	return r.Extra(DetailsErrorKey)
}

// Field renders the named column as a string. The second return value
// reports whether the record carries the field at all; absent optional
// values render as the empty string.
func (r *Record) Field(name string) (string, bool) {
	switch name {
	case "title":
		return r.Title, true
	case "price":
		if r.Price == nil {
			return "", true
		}
		return strconv.FormatFloat(*r.Price, 'f', -1, 64), true
	case "rating":
		if r.Rating == nil {
			return "", true
		}
		return strconv.Itoa(*r.Rating), true
	case "availability":
		if r.Availability == nil {
			return "", true
		}
		return *r.Availability, true
	case "product_url":
		return r.ProductURL, true
	}
	v, ok := r.extras[name]
	return v, ok
}

// MarshalJSON emits the typed core with null for absent optionals plus
// the extra fields, so JSONL output matches the CSV schema. An extra
// whose key collides with a core column (a product-information
// "availability" row, say) is skipped: the core value wins, same as
// Field.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 5+len(r.extraKeys))
	out["title"] = r.Title
	out["product_url"] = r.ProductURL
	if r.Price != nil {
		out["price"] = *r.Price
	} else {
		out["price"] = nil
	}
	if r.Rating != nil {
		out["rating"] = *r.Rating
	} else {
		out["rating"] = nil
	}
	if r.Availability != nil {
		out["availability"] = *r.Availability
	} else {
		out["availability"] = nil
	}
	for _, k := range r.extraKeys {
		switch k {
		case "title", "price", "rating", "availability", "product_url":
			continue
		}
		out[k] = r.extras[k]
	}
	return json.Marshal(out)
}

// CrawlResult holds the overall outcome of a crawl.
type CrawlResult struct {
	Records      []*Record
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	RetryCount   int
	ErrorCount   int
	DetailErrors int
	FailedURLs   []string
	ErrorsByType map[string]int
}
