package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document holds the plain text previously extracted from an uploaded
// file. Extraction happens outside the chat pipeline; the pipeline only
// reads ExtractedText when building prompts.
type Document struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	Filename      string
	ContentType   string
	SizeBytes     int64
	ExtractedText string
	CreatedAt     time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
