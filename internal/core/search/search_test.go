package search

import (
	"strings"
	"testing"
	"time"

	"github.com/neilberkman/thinkchat/internal/core/models"
)

var base = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func testSessions() []models.ChatSession {
	at := func(d int) time.Time { return base.Add(time.Duration(d) * time.Hour) }

	auth := models.NewSession("s-auth", at(0)).
		WithMessage(models.NewMessage("msg-1", models.RoleUser, "Let's implement user Authentication with JWT tokens", at(0)), at(0)).
		WithMessage(models.NewMessage("msg-2", models.RoleModel, "I'll help you implement authentication. First, let's create the auth middleware", at(1)), at(1))

	code := models.NewSession("s-code", at(-72)).
		WithMessage(models.NewMessage("msg-3", models.RoleUser, "Can you write the getUserById function?", at(-72)), at(-72)).
		WithMessage(models.NewMessage("msg-4", models.RoleModel, "Sure, here's the getUserById function implementation", at(-71)), at(-71))

	streaming := models.NewMessage("msg-6", models.RoleModel, "authentication partial", at(2))
	streaming.IsStreaming = true
	pending := models.NewSession("s-pending", at(2)).
		WithMessage(models.NewMessage("msg-5", models.RoleUser, "more on tokens", at(2)), at(2)).
		WithMessage(streaming, at(2))

	return []models.ChatSession{auth, code, pending}
}

func TestSearch(t *testing.T) {
	sessions := testSessions()

	t.Run("BasicSearch", func(t *testing.T) {
		results, err := SearchAt(sessions, "authentication", 0, base)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results for 'authentication', got %d", len(results))
		}
		// most recent first
		if results[0].MessageID != "msg-2" || results[1].MessageID != "msg-1" {
			t.Errorf("order = %s, %s", results[0].MessageID, results[1].MessageID)
		}
		for _, r := range results {
			if r.SessionID != "s-auth" || r.SessionTitle == "" || r.Snippet == "" {
				t.Errorf("incomplete result %+v", r)
			}
		}
	})

	t.Run("StreamingMessagesSkipped", func(t *testing.T) {
		results, _ := SearchAt(sessions, "partial", 0, base)
		if len(results) != 0 {
			t.Errorf("Expected 0 results, got %d", len(results))
		}
	})

	t.Run("CodeIdentifiers", func(t *testing.T) {
		results, _ := SearchAt(sessions, "getUserById", 0, base)
		if len(results) != 2 {
			t.Errorf("Expected 2 results, got %d", len(results))
		}
	})

	t.Run("RoleFilter", func(t *testing.T) {
		results, _ := SearchAt(sessions, "role:user function", 0, base)
		if len(results) != 1 || results[0].MessageID != "msg-3" {
			t.Errorf("results = %+v", results)
		}
	})

	t.Run("DateFilters", func(t *testing.T) {
		results, _ := SearchAt(sessions, "after:2024-01-09 implement", 0, base)
		for _, r := range results {
			if r.SessionID != "s-auth" {
				t.Errorf("result from %s passed after filter", r.SessionID)
			}
		}
		if len(results) != 2 {
			t.Errorf("Expected 2 results, got %d", len(results))
		}

		results, _ = SearchAt(sessions, "before:2024-01-09 implementation", 0, base)
		if len(results) != 1 || results[0].MessageID != "msg-4" {
			t.Errorf("results = %+v", results)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		results, _ := SearchAt(sessions, "the", 1, base)
		if len(results) != 1 {
			t.Errorf("Expected 1 result, got %d", len(results))
		}
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		results, err := Search(sessions, "  ", 0)
		if err == nil {
			t.Error("Expected error for empty query")
		}
		if results != nil {
			t.Error("Expected nil results for empty query")
		}
	})

	t.Run("NoResults", func(t *testing.T) {
		results, err := SearchAt(sessions, "nonexistent", 0, base)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Expected 0 results, got %d", len(results))
		}
	})
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 20) + "NEEDLE\nin the\thaystack " + strings.Repeat("dolor sit ", 20)
	snippet, ok := match(long, "needle")
	if !ok {
		t.Fatal("match() found nothing")
	}
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet not elided: %q", snippet)
	}
	if !strings.Contains(snippet, "NEEDLE in the haystack") {
		t.Errorf("snippet = %q", snippet)
	}

	snippet, _ = match("héllo wörld", "wörld")
	if snippet != "héllo wörld" {
		t.Errorf("multibyte snippet = %q", snippet)
	}
}

func TestParseQuery(t *testing.T) {
	now := base
	tests := []struct {
		name       string
		query      string
		wantQuery  string
		wantRole   models.Role
		wantAfter  bool
		wantBefore bool
	}{
		{"plain", "hello world", "hello world", "", false, false},
		{"role", "role:Model cube", "cube", models.RoleModel, false, false},
		{"unknown role stays text", "role:admin x", "role:admin x", "", false, false},
		{"after iso", "after:2024-01-01 foo", "foo", "", true, false},
		{"before natural", "before:yesterday foo", "foo", "", false, true},
		{"unparseable date dropped", "after:xyzzy foo", "foo", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseQuery(tt.query, now)
			if f.Query != tt.wantQuery || f.Role != tt.wantRole || f.HasAfter != tt.wantAfter || f.HasBefore != tt.wantBefore {
				t.Errorf("ParseQuery(%q) = %+v", tt.query, f)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-11-01", base)
	if !ok || !got.Equal(time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate(iso) = %v, %v", got, ok)
	}

	got, ok = ParseDate("yesterday", base)
	if !ok || got.Day() != 9 {
		t.Errorf("ParseDate(yesterday) = %v, %v", got, ok)
	}
}

func TestGroupBySession(t *testing.T) {
	results, _ := SearchAt(testSessions(), "the", 0, base)
	groups := GroupBySession(results)

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].SessionID != "s-auth" || groups[1].SessionID != "s-code" {
		t.Errorf("group order = %s, %s", groups[0].SessionID, groups[1].SessionID)
	}
	total := 0
	for _, g := range groups {
		total += len(g.Matches)
	}
	if total != len(results) {
		t.Errorf("grouped %d matches, want %d", total, len(results))
	}
}
