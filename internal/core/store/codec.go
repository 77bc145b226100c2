package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/neilberkman/thinkchat/internal/core/models"
)

// Encode serializes the collection into the persisted JSON array
func Encode(sessions []models.ChatSession) ([]byte, error) {
	out := make([]models.ChatSession, len(sessions))
	for i, s := range sessions {
		if s.Messages == nil {
			s.Messages = []models.Message{}
		}
		out[i] = s
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	return data, nil
}

// Decode parses a persisted JSON array of sessions. Unknown fields are
// ignored; every session and message is validated, so an unknown role or a
// duplicate id rejects the whole blob.
func Decode(data []byte) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	seen := make(map[string]bool, len(sessions))
	for i, s := range sessions {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("session %d: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = true
		if s.Messages == nil {
			sessions[i].Messages = []models.Message{}
		}
		if s.Title == "" {
			sessions[i].Title = models.DefaultTitle
		}
	}
	return sessions, nil
}

// DecodeExport accepts either the bare JSON array or a localStorage dump:
// an object mapping storage keys to values, where the value under key is
// the array itself or a string holding it.
func DecodeExport(data []byte, key string) ([]models.ChatSession, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return Decode(trimmed)
	}

	var dump map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &dump); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	raw, ok := dump[key]
	if !ok {
		return nil, fmt.Errorf("export has no %q entry", key)
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		return Decode([]byte(inner))
	}
	return Decode(raw)
}
