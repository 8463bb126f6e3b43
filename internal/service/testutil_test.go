package service

import (
	"testing"
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/unitofwork"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// newTestDB opens an in-memory sqlite database with the chat schema.
// The production defaults use gen_random_uuid(), which sqlite cannot
// parse, so the tables are created by hand here.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE chat_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE chat_messages (
			id TEXT PRIMARY KEY,
			chat_session_id TEXT NOT NULL,
			parent_message_id TEXT UNIQUE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			documents TEXT,
			status TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE documents (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			content_type TEXT,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			extracted_text TEXT NOT NULL,
			created_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE TABLE subscription_plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			description TEXT,
			price NUMERIC NOT NULL,
			tax_rate NUMERIC NOT NULL DEFAULT 0,
			billing_period TEXT NOT NULL DEFAULT 'monthly',
			is_active INTEGER NOT NULL DEFAULT 1,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE user_subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			plan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			current_period_start DATETIME NOT NULL,
			current_period_end DATETIME NOT NULL,
			provider_order_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedUser(t *testing.T, factory unitofwork.RepositoryFactory, role entity.UserRole) *entity.User {
	t.Helper()
	uow := factory.NewUnitOfWork(t.Context())

	user := &entity.User{
		Id:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		FullName:  "Test User",
		Role:      role,
		Status:    entity.UserStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, uow.UserRepository().Create(t.Context(), user))
	return user
}

func seedSession(t *testing.T, factory unitofwork.RepositoryFactory, userId uuid.UUID) *entity.ChatSession {
	t.Helper()
	uow := factory.NewUnitOfWork(t.Context())

	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		ThreadId:  uuid.NewString(),
		Title:     "Nova conversa",
		CreatedAt: time.Now(),
	}
	require.NoError(t, uow.ChatSessionRepository().Create(t.Context(), session))
	return session
}

func seedUserMessage(t *testing.T, factory unitofwork.RepositoryFactory, sessionId uuid.UUID, content string) *entity.ChatMessage {
	t.Helper()
	uow := factory.NewUnitOfWork(t.Context())

	message := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          entity.ChatMessageRoleUser,
		Content:       content,
		Status:        entity.ChatMessageStatusPending,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, uow.ChatMessageRepository().Create(t.Context(), message))
	return message
}
