package models

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Message is a single entry in a chat session
type Message struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"` // epoch milliseconds
	IsStreaming bool   `json:"isStreaming,omitempty"`
}

// NewMessage creates a settled message stamped with t
func NewMessage(id string, role Role, content string, t time.Time) Message {
	return Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: t.UnixMilli(),
	}
}

// Time returns the creation time of the message
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Validate checks if the message has required fields
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("unknown message role %q", m.Role)
	}
	if m.IsStreaming && m.Role != RoleModel {
		return errors.New("only model messages can be streaming")
	}
	return nil
}
