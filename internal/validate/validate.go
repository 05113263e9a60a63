// Package validate holds the pure field validators every repository write
// path runs before touching the store. No store access, no authorization.
package validate

import (
	"fmt"
	"strings"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
)

// markupSequences are rejected outright; names are plain text, never HTML.
var markupSequences = []string{"<", ">", "javascript:", "&#"}

// String checks that value is non-empty after trimming, within maxLen, and
// free of markup. Returns the trimmed value.
func String(value string, maxLen int, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &apperr.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(trimmed) > maxLen {
		return "", &apperr.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be at most %d characters", maxLen),
		}
	}
	lower := strings.ToLower(trimmed)
	for _, seq := range markupSequences {
		if strings.Contains(lower, seq) {
			return "", &apperr.ValidationError{Field: field, Reason: "must not contain markup"}
		}
	}
	return trimmed, nil
}

// Number checks that value lies in [min, max].
func Number(value, min, max int, field string) error {
	if value < min || value > max {
		return &apperr.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}
	return nil
}
