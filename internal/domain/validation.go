package domain

import (
	"fmt"
	"strings"
	"time"
)

// Validation constants
const (
	MaxBusinessCodeLength = 100
	MaxTombstoneCodes     = 1000
	DefaultPageSize       = 50
	MaxPageSize           = 1000
	PlainFeedPageSize     = 100
	MaxValidatedPageSize  = 200
	DefaultFeedMaxAgeDays = 30
)

// ValidateBusinessCode validates a business code.
func ValidateBusinessCode(code string) error {
	code = strings.TrimSpace(code)

	if code == "" {
		return NewFieldError("code_ops", "business code cannot be empty")
	}

	if len(code) > MaxBusinessCodeLength {
		return NewFieldError("code_ops", fmt.Sprintf("business code exceeds %d characters", MaxBusinessCodeLength))
	}

	return nil
}

// ValidateCurrency normalizes a currency code. Empty means USD.
func ValidateCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD", nil
	}
	if len(currency) != 3 {
		return "", NewFieldError("devise", currency+" is not a three-letter currency code")
	}
	return currency, nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	return ClampPagination(limit, offset, DefaultPageSize, MaxPageSize)
}

// ClampPagination applies a default and a ceiling to limit and floors offset at zero.
func ClampPagination(limit, offset, defaultLimit, maxLimit int) (int, int, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}

// NormalizeCodes trims, drops blanks and de-duplicates codes while keeping order.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ParseTimestamp accepts the timestamp layouts the POS clients send.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewFieldError("timestamp", "unrecognized timestamp "+raw)
}
