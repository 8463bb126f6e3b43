package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"agro-assistant-be/internal/dto"
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/unitofwork"
	"agro-assistant-be/pkg/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatEnv struct {
	factory  unitofwork.RepositoryFactory
	service  IChatService
	payloads chan ChatJobPayload
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()

	db := newTestDB(t)
	factory := unitofwork.NewRepositoryFactory(db)

	jobs := queue.NewQueue(queue.Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Second}, nopLogger{})
	payloads := make(chan ChatJobPayload, 8)
	jobs.Register(JobTypeChatCompletion, func(ctx context.Context, job queue.Job) error {
		var p ChatJobPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return err
		}
		payloads <- p
		return nil
	})
	require.NoError(t, jobs.Start(t.Context()))
	t.Cleanup(func() { _ = jobs.Close() })

	return &chatEnv{
		factory:  factory,
		service:  NewChatService(factory, jobs, nopLogger{}),
		payloads: payloads,
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	_, err := env.service.SendMessage(t.Context(), user.Id, session.Id, &dto.SendMessageRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSendMessageRejectsForeignSession(t *testing.T) {
	env := newChatEnv(t)
	owner := seedUser(t, env.factory, entity.UserRoleUser)
	intruder := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, owner.Id)

	_, err := env.service.SendMessage(t.Context(), intruder.Id, session.Id, &dto.SendMessageRequest{Content: "oi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageEnqueuesAndAnswersImmediately(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	res, err := env.service.SendMessage(t.Context(), user.Id, session.Id, &dto.SendMessageRequest{Content: "qual adubo usar?"})
	require.NoError(t, err)
	assert.Equal(t, "processing", res.Status)
	assert.Equal(t, "qual adubo usar?", res.UserMessage.Content)

	select {
	case p := <-env.payloads:
		assert.Equal(t, session.Id, p.SessionId)
		assert.Equal(t, res.UserMessage.Id, p.UserMessageId)
		assert.Equal(t, "qual adubo usar?", p.FullContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no job was enqueued")
	}

	// The stored message starts pending.
	poll, err := env.service.PollMessage(t.Context(), user.Id, res.UserMessage.Id)
	require.NoError(t, err)
	assert.Equal(t, "pending", poll.Status)
	assert.Nil(t, poll.Reply)
}

func TestSendMessageInjectsDocumentContentIntoJobOnly(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	uow := env.factory.NewUnitOfWork(t.Context())
	doc := &entity.Document{
		Id:            uuid.New(),
		UserId:        user.Id,
		Filename:      "doc.pdf",
		ExtractedText: "ABC",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, uow.DocumentRepository().Create(t.Context(), doc))

	_, err := env.service.SendMessage(t.Context(), user.Id, session.Id, &dto.SendMessageRequest{
		Content:   "what is this?",
		Documents: []dto.DocumentRefDTO{{DocumentId: doc.Id, Filename: "doc.pdf"}},
	})
	require.NoError(t, err)

	select {
	case p := <-env.payloads:
		assert.Equal(t, "--- Conteúdo de doc.pdf ---\nABC\n\nPergunta: what is this?", p.FullContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no job was enqueued")
	}

	// The persisted message keeps only what the user typed.
	stored, err := uow.ChatMessageRepository().FindOne(t.Context())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "what is this?", stored.Content)
	require.Len(t, stored.Documents, 1)
	assert.Equal(t, doc.Id, stored.Documents[0].DocumentId)
}

func TestSendMessageResolvesFileRefs(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	uow := env.factory.NewUnitOfWork(t.Context())
	doc := &entity.Document{
		Id:            uuid.New(),
		UserId:        user.Id,
		Filename:      "analise.pdf",
		ExtractedText: "pH 5.2",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, uow.DocumentRepository().Create(t.Context(), doc))

	// Attachments can also arrive under files, keyed by file_id.
	body := []byte(`{"content":"what is this?","files":[{"file_id":"` + doc.Id.String() + `","filename":"analise.pdf"}]}`)
	var req dto.SendMessageRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Files, 1)
	assert.Equal(t, doc.Id, req.Files[0].FileId)

	_, err := env.service.SendMessage(t.Context(), user.Id, session.Id, &req)
	require.NoError(t, err)

	select {
	case p := <-env.payloads:
		assert.Equal(t, "--- Conteúdo de analise.pdf ---\npH 5.2\n\nPergunta: what is this?", p.FullContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no job was enqueued")
	}
}

func TestSendMessageSkipsForeignDocuments(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	other := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	uow := env.factory.NewUnitOfWork(t.Context())
	foreign := &entity.Document{
		Id:            uuid.New(),
		UserId:        other.Id,
		Filename:      "secret.txt",
		ExtractedText: "confidential",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, uow.DocumentRepository().Create(t.Context(), foreign))

	_, err := env.service.SendMessage(t.Context(), user.Id, session.Id, &dto.SendMessageRequest{
		Content:   "leak it",
		Documents: []dto.DocumentRefDTO{{DocumentId: foreign.Id}},
	})
	require.NoError(t, err)

	select {
	case p := <-env.payloads:
		assert.Equal(t, "leak it", p.FullContent)
	case <-time.After(2 * time.Second):
		t.Fatal("no job was enqueued")
	}
}

func TestPollMessageReturnsReplyWhenCompleted(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	userMsg := seedUserMessage(t, env.factory, session.Id, "oi")

	uow := env.factory.NewUnitOfWork(t.Context())
	userMsg.Status = entity.ChatMessageStatusCompleted
	require.NoError(t, uow.ChatMessageRepository().Update(t.Context(), userMsg))

	parentId := userMsg.Id
	reply := &entity.ChatMessage{
		Id:              uuid.New(),
		ChatSessionId:   session.Id,
		ParentMessageId: &parentId,
		Role:            entity.ChatMessageRoleAssistant,
		Content:         "Olá! Como posso ajudar?",
		Status:          entity.ChatMessageStatusCompleted,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, uow.ChatMessageRepository().Create(t.Context(), reply))

	poll, err := env.service.PollMessage(t.Context(), user.Id, userMsg.Id)
	require.NoError(t, err)
	assert.Equal(t, "completed", poll.Status)
	require.NotNil(t, poll.Reply)
	assert.Equal(t, "Olá! Como posso ajudar?", *poll.Reply)
}

func TestPollMessageHidesForeignMessages(t *testing.T) {
	env := newChatEnv(t)
	owner := seedUser(t, env.factory, entity.UserRoleUser)
	intruder := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, owner.Id)
	userMsg := seedUserMessage(t, env.factory, session.Id, "oi")

	_, err := env.service.PollMessage(t.Context(), intruder.Id, userMsg.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionHistoryIsChronological(t *testing.T) {
	env := newChatEnv(t)
	user := seedUser(t, env.factory, entity.UserRoleUser)
	session := seedSession(t, env.factory, user.Id)

	uow := env.factory.NewUnitOfWork(t.Context())
	for i, content := range []string{"primeira", "segunda", "terceira"} {
		msg := &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: session.Id,
			Role:          entity.ChatMessageRoleUser,
			Content:       content,
			Status:        entity.ChatMessageStatusCompleted,
			CreatedAt:     time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, uow.ChatMessageRepository().Create(t.Context(), msg))
	}

	history, err := env.service.GetSessionHistory(t.Context(), user.Id, session.Id)
	require.NoError(t, err)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, "primeira", history.Messages[0].Content)
	assert.Equal(t, "terceira", history.Messages[2].Content)
}
