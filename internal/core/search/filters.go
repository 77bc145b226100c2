package search

import (
	"strings"
	"time"

	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filters represents parsed filters from a search query
type Filters struct {
	Query      string      // The actual search text
	Role       models.Role // Only messages with this role, "" for any
	AfterDate  time.Time   // Only messages after this date
	BeforeDate time.Time   // Only messages before this date
	HasAfter   bool        // Whether AfterDate was set
	HasBefore  bool        // Whether BeforeDate was set
}

// ParseQuery extracts filters from a search query string
// Supports:
//   - role:user, role:model - filter by author
//   - after:yesterday, after:2024-11-01 - messages after a date
//   - before:last-week, before:2024-11-01 - messages before a date
func ParseQuery(query string, now time.Time) Filters {
	filters := Filters{}
	tokens := strings.Fields(query)
	var queryParts []string

	for _, token := range tokens {
		if v, ok := strings.CutPrefix(token, "role:"); ok {
			if r := models.Role(strings.ToLower(v)); r.Valid() {
				filters.Role = r
				continue
			}
		}

		if v, ok := strings.CutPrefix(token, "after:"); ok {
			if parsed, ok := ParseDate(v, now); ok {
				filters.AfterDate = parsed
				filters.HasAfter = true
			}
			continue
		}

		if v, ok := strings.CutPrefix(token, "before:"); ok {
			if parsed, ok := ParseDate(v, now); ok {
				filters.BeforeDate = parsed
				filters.HasBefore = true
			}
			continue
		}

		queryParts = append(queryParts, token)
	}

	filters.Query = strings.Join(queryParts, " ")
	return filters
}

// Matches reports whether a message passes the role and date filters
func (f Filters) Matches(m models.Message) bool {
	if f.Role != "" && m.Role != f.Role {
		return false
	}
	ts := m.Time()
	if f.HasAfter && !ts.After(f.AfterDate) {
		return false
	}
	if f.HasBefore && !ts.Before(f.BeforeDate) {
		return false
	}
	return true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
}

// ParseDate parses a date given as a standard format or in natural language
// ("yesterday", "last-week", "3 days ago"). Dashes stand in for spaces so
// phrases fit in a single query token.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, s, now.Location()); err == nil {
			return t, true
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(strings.ReplaceAll(s, "-", " "), now)
	if err == nil && result != nil {
		return result.Time, true
	}
	return time.Time{}, false
}
