package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID  `gorm:"type:uuid;not null;index"`
	// One assistant reply per user message; the unique index is what the
	// worker's find-or-create relies on under retries.
	ParentMessageId *uuid.UUID     `gorm:"type:uuid;uniqueIndex"`
	Role            string         `gorm:"type:varchar(20);not null"`
	Content         string         `gorm:"type:text;not null"`
	Documents       datatypes.JSON `gorm:"type:jsonb"`
	Status          string         `gorm:"type:varchar(20);not null;index"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
