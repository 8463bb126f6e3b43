package dto

import (
	"time"

	"github.com/google/uuid"
)

type DocumentRefDTO struct {
	DocumentId uuid.UUID `json:"document_id" validate:"required"`
	Filename   string    `json:"filename"`
}

// FileRefDTO is the attachment shape used by the files field; it keys
// on file_id instead of document_id but resolves to the same store.
type FileRefDTO struct {
	FileId   uuid.UUID `json:"file_id" validate:"required"`
	Filename string    `json:"filename"`
}

type SendMessageRequest struct {
	Content   string           `json:"content" validate:"required"`
	Documents []DocumentRefDTO `json:"documents,omitempty"`
	Files     []FileRefDTO     `json:"files,omitempty"`
}

type UserMessageDTO struct {
	Id        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendMessageResponse is the 202 Accepted body: the persisted user
// message, returned before any model work happens.
type SendMessageResponse struct {
	Status      string         `json:"status"`
	UserMessage UserMessageDTO `json:"userMessage"`
}

// PollMessageResponse reports processing progress for one user message.
// Reply is null until the assistant row exists and has content.
type PollMessageResponse struct {
	Status string  `json:"status"`
	Reply  *string `json:"reply"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type SessionResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionHistoryResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
}
