package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/thinkchat/internal/core/models"
	"github.com/neilberkman/thinkchat/internal/core/search"
)

// Loader returns the current session collection. It is called on every tool
// invocation so the server sees writes made by a running chat.
type Loader func(ctx context.Context) ([]models.ChatSession, error)

// SearchSessionsArgs defines arguments for the search_sessions tool
type SearchSessionsArgs struct {
	Query      string `json:"query" jsonschema:"description=Search term to match against message content,required"`
	Limit      int    `json:"limit,omitempty" jsonschema:"description=Max number of sessions to return (default: 10)"`
	Role       string `json:"role,omitempty" jsonschema:"description=Only messages from user or model"`
	AfterDate  string `json:"after_date,omitempty" jsonschema:"description=Only messages after this date"`
	BeforeDate string `json:"before_date,omitempty" jsonschema:"description=Only messages before this date"`
}

// GetSessionArgs defines arguments for the get_session tool
type GetSessionArgs struct {
	SessionID   string `json:"session_id" jsonschema:"description=Session id to retrieve,required"`
	SearchQuery string `json:"search_query,omitempty" jsonschema:"description=Optional search term to find matching messages"`
}

// ListSessionsArgs defines arguments for the list_sessions tool
type ListSessionsArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Max sessions to return (default: 20)"`
}

// SessionMatch represents a session search result
type SessionMatch struct {
	SessionID  string         `json:"session_id"`
	Title      string         `json:"title"`
	LatestAt   string         `json:"latest_at"`
	MatchCount int            `json:"match_count"`
	Matches    []MatchSnippet `json:"matches"`
}

// MatchSnippet represents a message match within a session
type MatchSnippet struct {
	Role    string `json:"role"`
	Snippet string `json:"snippet"`
}

// SessionDetail represents a session with its messages
type SessionDetail struct {
	SessionID        string          `json:"session_id"`
	Title            string          `json:"title"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
	MessageCount     int             `json:"message_count"`
	Messages         []MessageDetail `json:"messages,omitempty"`
	MatchingMessages []MessageDetail `json:"matching_messages,omitempty"`
}

// MessageDetail represents a single message in a session
type MessageDetail struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Sequence  int    `json:"sequence"`
}

// SessionSummary represents a session in the list view
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

const timeLayout = "2006-01-02 15:04:05"

// maxDetailMessages caps the messages returned by get_session
const maxDetailMessages = 50

// NewServer builds the MCP server with its read-only tools
func NewServer(load Loader, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"thinkchat",
		version,
	)

	searchTool := mcp.NewTool("search_sessions",
		mcp.WithDescription("Search stored chat sessions for a query string across all message content. Supports role and date filtering."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term to match against message content")),
		mcp.WithNumber("limit",
			mcp.Description("Max number of sessions to return (default: 10)")),
		mcp.WithString("role",
			mcp.Description("Only messages from 'user' or 'model'")),
		mcp.WithString("after_date",
			mcp.Description("Only messages after this date (e.g. '2025-01-01' or 'yesterday')")),
		mcp.WithString("before_date",
			mcp.Description("Only messages before this date")),
	)
	s.AddTool(searchTool, makeSearchSessionsHandler(load))

	detailTool := mcp.NewTool("get_session",
		mcp.WithDescription("Retrieve a chat session with its most recent messages, and optionally the messages matching a search term"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session id to retrieve")),
		mcp.WithString("search_query",
			mcp.Description("Optional search term to find matching messages in the session")),
	)
	s.AddTool(detailTool, makeGetSessionHandler(load))

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("Get chat sessions, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max sessions to return (default: 20)")),
	)
	s.AddTool(listTool, makeListSessionsHandler(load))

	return s
}

// StartServer serves the tools over stdio until the client disconnects
func StartServer(load Loader, version string) error {
	return server.ServeStdio(NewServer(load, version))
}

func decodeArgs(request mcp.CallToolRequest, v any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	return json.Unmarshal(argsBytes, v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func makeSearchSessionsHandler(load Loader) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SearchSessionsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 10
		}

		sessions, err := load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load sessions: %v", err)), nil
		}

		// Filters travel in the query string, the same syntax the CLI accepts
		query := args.Query
		if args.Role != "" {
			query += " role:" + args.Role
		}
		if args.AfterDate != "" {
			query += " after:" + strings.ReplaceAll(args.AfterDate, " ", "-")
		}
		if args.BeforeDate != "" {
			query += " before:" + strings.ReplaceAll(args.BeforeDate, " ", "-")
		}

		found, err := search.Search(sessions, query, 0)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		results := []SessionMatch{}
		for _, g := range search.GroupBySession(found) {
			result := SessionMatch{
				SessionID:  g.SessionID,
				Title:      g.SessionTitle,
				LatestAt:   g.LatestMatch.Format(timeLayout),
				MatchCount: len(g.Matches),
				Matches:    []MatchSnippet{},
			}

			// Limit to 3 matches per session for display (interface concern)
			for i, match := range g.Matches {
				if i >= 3 {
					break
				}
				result.Matches = append(result.Matches, MatchSnippet{
					Role:    string(match.Role),
					Snippet: match.Snippet,
				})
			}

			results = append(results, result)
			if len(results) >= limit {
				break
			}
		}

		return jsonResult(map[string]any{"sessions": results})
	}
}

func makeGetSessionHandler(load Loader) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetSessionArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		sessions, err := load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load sessions: %v", err)), nil
		}

		var sess *models.ChatSession
		for i := range sessions {
			if sessions[i].ID == args.SessionID {
				sess = &sessions[i]
				break
			}
		}
		if sess == nil {
			return mcp.NewToolResultError(fmt.Sprintf("session not found: %s", args.SessionID)), nil
		}

		settled := sess.Settled()
		detail := SessionDetail{
			SessionID:    sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.Created().Format(timeLayout),
			UpdatedAt:    sess.Updated().Format(timeLayout),
			MessageCount: len(settled),
		}

		// Most recent messages only (interface concern)
		start := max(len(settled)-maxDetailMessages, 0)
		for i := start; i < len(settled); i++ {
			detail.Messages = append(detail.Messages, messageDetail(settled[i], i))
		}

		if args.SearchQuery != "" {
			detail.MatchingMessages = []MessageDetail{}
			queryLower := strings.ToLower(args.SearchQuery)
			for i, msg := range settled {
				if strings.Contains(strings.ToLower(msg.Content), queryLower) {
					detail.MatchingMessages = append(detail.MatchingMessages, messageDetail(msg, i))
					if len(detail.MatchingMessages) >= 5 {
						break
					}
				}
			}
		}

		return jsonResult(detail)
	}
}

func messageDetail(m models.Message, seq int) MessageDetail {
	return MessageDetail{
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Time().Format(timeLayout),
		Sequence:  seq,
	}
}

func makeListSessionsHandler(load Loader) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListSessionsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 20
		}

		sessions, err := load(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load sessions: %v", err)), nil
		}

		if len(sessions) > limit {
			sessions = sessions[:limit]
		}

		summaries := []SessionSummary{}
		for _, s := range sessions {
			summaries = append(summaries, SessionSummary{
				SessionID:    s.ID,
				Title:        s.Title,
				UpdatedAt:    time.UnixMilli(s.UpdatedAt).Format(timeLayout),
				MessageCount: len(s.Messages),
			})
		}

		return jsonResult(map[string]any{"sessions": summaries})
	}
}
