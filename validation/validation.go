// Package validation collects per-field problems into a Violations map.
// Values are short snake_case codes that templates and JSON clients both read.
package validation

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records msg for field unless the field already has a problem.
func (v Violations) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v.Add(field, "must_not_be_negative")
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v.Add(field, "out_of_range")
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail is a shape check only: something@something.tld with no spaces.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
		return
	}
	if !ValidEmail(value) {
		v.Add(field, "invalid_email")
	}
}

// OneOf accepts an empty value; pair it with Required when the field is mandatory.
func OneOf(field, value string, allowed []string, v Violations) {
	if value != "" && !slices.Contains(allowed, value) {
		v.Add(field, "invalid_choice")
	}
}

const DateLayout = "2006-01-02"

// Date parses a yyyy-mm-dd value. A zero time is returned with a violation
// when the value is missing or malformed.
func Date(field, value string, v Violations) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, "required")
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		v.Add(field, "invalid_date")
		return time.Time{}
	}
	return t
}

func MinLength(field, value string, n int, v Violations) {
	if len(value) < n {
		v.Add(field, "too_short")
	}
}
