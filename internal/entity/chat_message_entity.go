package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessageRole string
type ChatMessageStatus string

const (
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant"

	ChatMessageStatusPending    ChatMessageStatus = "pending"
	ChatMessageStatusProcessing ChatMessageStatus = "processing"
	ChatMessageStatusCompleted  ChatMessageStatus = "completed"
	ChatMessageStatusFailed     ChatMessageStatus = "failed"
)

// IsTerminal reports whether the status allows no further content writes.
func (s ChatMessageStatus) IsTerminal() bool {
	return s == ChatMessageStatusCompleted || s == ChatMessageStatusFailed
}

// DocumentRef points at a stored document attached to a user message.
type DocumentRef struct {
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
}

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	// ParentMessageId links an assistant reply to the user message that
	// produced it. Nil for user messages.
	ParentMessageId *uuid.UUID
	Role            ChatMessageRole
	Content         string
	Documents       []DocumentRef
	Status          ChatMessageStatus
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}
