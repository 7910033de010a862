// Package view holds the presentational helpers shared by the console pages
// and the command-line output.
package view

import (
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felo/classifier-console/internal/api"
)

// DateLayout renders like en-US toLocaleString with short month, 2-digit
// hour, 12-hour clock and short zone name
const DateLayout = "Jan 2, 2006, 03:04 PM MST"

// CategoryClass maps a category to its CSS class
func CategoryClass(category api.Category) string {
	switch category {
	case api.CategoryBilling:
		return "category-billing"
	case api.CategoryTechnical:
		return "category-technical"
	case api.CategoryFeedback:
		return "category-feedback"
	default:
		return "category-other"
	}
}

// FormatDate renders ts in loc. Unparsable values are returned unchanged.
func FormatDate(ts api.Timestamp, loc *time.Location) string {
	if !ts.Valid {
		return ts.Raw
	}
	if loc == nil {
		loc = time.Local
	}
	return ts.Time.In(loc).Format(DateLayout)
}

// Truncate cuts s to at most n runes, appending "..." when shortened
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " \t\n") + "..."
}

// Pluralize returns singular when n == 1 and plural otherwise
func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// FuncMap exposes the helpers to templates, rendering dates in loc
func FuncMap(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"categoryClass": CategoryClass,
		"formatDate": func(ts api.Timestamp) string {
			return FormatDate(ts, loc)
		},
		"isoDate": func(ts api.Timestamp) string {
			if !ts.Valid {
				return ""
			}
			return ts.Time.UTC().Format(time.RFC3339)
		},
		"truncate":  Truncate,
		"pluralize": Pluralize,
		"add": func(a, b int) int {
			return a + b
		},
	}
}
