package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neilberkman/thinkchat/internal/core/models"
)

// Result represents a single search hit
type Result struct {
	SessionID    string
	SessionTitle string
	MessageID    string
	Role         models.Role
	Snippet      string
	Timestamp    time.Time
}

// DefaultLimit caps the number of results
const DefaultLimit = 1000

// snippetRadius is the number of runes kept on each side of a match
const snippetRadius = 32

// Search performs a case-insensitive substring search over the messages of
// sessions. The query may carry filters (see ParseQuery).
// Results are ordered by timestamp (most recent first)
func Search(sessions []models.ChatSession, query string, limit int) ([]Result, error) {
	return SearchAt(sessions, query, limit, time.Now())
}

// SearchAt is Search with relative dates resolved against now
func SearchAt(sessions []models.ChatSession, query string, limit int, now time.Time) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	filters := ParseQuery(query, now)
	needle := strings.ToLower(filters.Query)

	var results []Result
	for _, sess := range sessions {
		for _, m := range sess.Messages {
			if m.IsStreaming || !filters.Matches(m) {
				continue
			}
			snippet, ok := match(m.Content, needle)
			if !ok {
				continue
			}
			results = append(results, Result{
				SessionID:    sess.ID,
				SessionTitle: sess.Title,
				MessageID:    m.ID,
				Role:         m.Role,
				Snippet:      snippet,
				Timestamp:    m.Time(),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// match finds needle in content and returns a single-line snippet around
// it. An empty needle matches everything.
func match(content, needle string) (string, bool) {
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))
	if len(lower) != len(runes) {
		// lowering changed the rune count, fall back to a plain scan
		if !strings.Contains(strings.ToLower(content), needle) {
			return "", false
		}
		return excerpt(runes, 0, 0), true
	}

	if needle == "" {
		return excerpt(runes, 0, 0), true
	}

	idx := indexRunes(lower, []rune(needle))
	if idx < 0 {
		return "", false
	}
	return excerpt(runes, idx, len([]rune(needle))), true
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		found := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}

func excerpt(runes []rune, start, n int) string {
	from := max(start-snippetRadius, 0)
	to := min(start+n+snippetRadius, len(runes))

	s := strings.Join(strings.Fields(string(runes[from:to])), " ")
	if from > 0 {
		s = "..." + s
	}
	if to < len(runes) {
		s += "..."
	}
	return s
}

// SessionHits groups results of one session
type SessionHits struct {
	SessionID    string
	SessionTitle string
	LatestMatch  time.Time
	Matches      []Result
}

// GroupBySession groups results by session, keeping the order in which
// sessions first appear
func GroupBySession(results []Result) []SessionHits {
	var groups []SessionHits
	index := make(map[string]int)
	for _, r := range results {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(groups)
			index[r.SessionID] = i
			groups = append(groups, SessionHits{
				SessionID:    r.SessionID,
				SessionTitle: r.SessionTitle,
				LatestMatch:  r.Timestamp,
			})
		}
		groups[i].Matches = append(groups[i].Matches, r)
		if r.Timestamp.After(groups[i].LatestMatch) {
			groups[i].LatestMatch = r.Timestamp
		}
	}
	return groups
}
