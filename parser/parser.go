// Package parser converts raw text fragments from untrusted catalog
// markup into typed field values. Every function degrades to an absent
// value instead of failing; upstream HTML is heterogeneous and missing
// sub-elements are normal.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-catalog-export/models"
)

var pricePattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ratingWords is the closed set of rank tokens the catalog uses as CSS
// classes. Matching is case-sensitive.
var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ParsePrice extracts the first decimal token from a price fragment
// such as "£51.77" or "19,99". Comma decimal separators are normalized
// to periods before matching. The boolean reports whether a price was
// found.
func ParsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	m := pricePattern.FindString(strings.ReplaceAll(text, ",", "."))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRating maps a star-rating class hint ("star-rating Three") to an
// integer in 1..5. Unknown or absent hints yield no rating.
func ParseRating(classHint string) (int, bool) {
	for _, word := range strings.Fields(classHint) {
		if v, ok := ratingWords[word]; ok {
			return v, true
		}
	}
	return 0, false
}

// NormalizeAvailability collapses internal whitespace runs to single
// spaces and trims. Empty or all-whitespace input yields no value.
func NormalizeAvailability(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	return strings.Join(fields, " "), true
}

// ValidateRecord ensures the extractor captured the required fields.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title")
	}
	if strings.TrimSpace(r.ProductURL) == "" {
		return fmt.Errorf("record missing product URL for %s", r.Title)
	}
	return nil
}
