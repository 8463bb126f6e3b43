package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"agro-assistant-be/internal/dto"
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"
	"agro-assistant-be/pkg/assistant"
	"agro-assistant-be/pkg/queue"

	"github.com/google/uuid"
)

var (
	ErrEmptyContent    = errors.New("message content must not be empty")
	ErrSessionNotFound = errors.New("chat session not found")
	ErrMessageNotFound = errors.New("message not found")
)

type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error)
	GetSessionHistory(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error)
	DeleteSession(ctx context.Context, userId, sessionId uuid.UUID) error

	// SendMessage persists the user turn, enqueues the completion job
	// and returns immediately; it never blocks on the model.
	SendMessage(ctx context.Context, userId, sessionId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)

	// PollMessage reports the processing status of a user message and
	// the assistant reply once it exists.
	PollMessage(ctx context.Context, userId, messageId uuid.UUID) (*dto.PollMessageResponse, error)
}

type chatService struct {
	uowFactory unitofwork.RepositoryFactory
	jobs       *queue.Queue
	logger     logger.ILogger
}

func NewChatService(uowFactory unitofwork.RepositoryFactory, jobs *queue.Queue, log logger.ILogger) IChatService {
	return &chatService{
		uowFactory: uowFactory,
		jobs:       jobs,
		logger:     log,
	}
}

func (s *chatService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Nova conversa"
	}

	session := &entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		ThreadId:  uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	return sessionToDTO(session), nil
}

func (s *chatService) ListSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SessionResponse, len(sessions))
	for i, session := range sessions {
		res[i] = sessionToDTO(session)
	}
	return res, nil
}

func (s *chatService) GetSessionHistory(ctx context.Context, userId, sessionId uuid.UUID) (*dto.SessionHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := s.ownedSession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionHistoryResponse{
		Session:  *sessionToDTO(session),
		Messages: make([]dto.MessageResponse, len(messages)),
	}
	for i, m := range messages {
		res.Messages[i] = dto.MessageResponse{
			Id:        m.Id,
			Role:      string(m.Role),
			Content:   m.Content,
			Status:    string(m.Status),
			CreatedAt: m.CreatedAt,
		}
	}
	return res, nil
}

func (s *chatService) DeleteSession(ctx context.Context, userId, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := s.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return err
	}

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	return uow.ChatSessionRepository().Delete(ctx, sessionId)
}

func (s *chatService) SendMessage(ctx context.Context, userId, sessionId uuid.UUID, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := s.ownedSession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	refs := collectRefs(req)
	fullContent, refs, err := s.resolveDocuments(ctx, uow, userId, content, refs)
	if err != nil {
		return nil, err
	}

	// The stored message keeps only what the user typed; document text
	// travels in the job so history replay never re-injects it.
	userMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          entity.ChatMessageRoleUser,
		Content:       content,
		Documents:     refs,
		Status:        entity.ChatMessageStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, userMessage); err != nil {
		return nil, err
	}

	payload := ChatJobPayload{
		SessionId:     session.Id,
		UserMessageId: userMessage.Id,
		UserId:        userId,
		ThreadId:      session.ThreadId,
		FullContent:   fullContent,
	}
	jobId, err := s.jobs.Enqueue(ctx, JobTypeChatCompletion, payload)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("chat", "message enqueued", map[string]interface{}{
		"session_id": session.Id.String(),
		"message_id": userMessage.Id.String(),
		"job_id":     jobId,
	})

	return &dto.SendMessageResponse{
		Status: "processing",
		UserMessage: dto.UserMessageDTO{
			Id:        userMessage.Id,
			Content:   userMessage.Content,
			CreatedAt: userMessage.CreatedAt,
		},
	}, nil
}

func (s *chatService) PollMessage(ctx context.Context, userId, messageId uuid.UUID) (*dto.PollMessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	message, err := uow.ChatMessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}

	if _, err := s.ownedSession(ctx, uow, userId, message.ChatSessionId); err != nil {
		return nil, err
	}

	var reply *string
	assistantRow, err := uow.ChatMessageRepository().FindOne(ctx,
		specification.ByParentMessageID{ParentMessageID: message.Id})
	if err != nil {
		return nil, err
	}
	if assistantRow != nil && assistantRow.Content != "" {
		reply = &assistantRow.Content
	}

	return &dto.PollMessageResponse{
		Status: string(message.Status),
		Reply:  reply,
	}, nil
}

func (s *chatService) ownedSession(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserId != userId {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func collectRefs(req *dto.SendMessageRequest) []entity.DocumentRef {
	var refs []entity.DocumentRef
	for _, d := range req.Documents {
		refs = append(refs, entity.DocumentRef{DocumentId: d.DocumentId, Filename: d.Filename})
	}
	for _, f := range req.Files {
		refs = append(refs, entity.DocumentRef{DocumentId: f.FileId, Filename: f.Filename})
	}
	return refs
}

// resolveDocuments loads the stored text of each referenced document
// and builds the full document-augmented prompt content.
func (s *chatService) resolveDocuments(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, content string, refs []entity.DocumentRef) (string, []entity.DocumentRef, error) {
	if len(refs) == 0 {
		return content, refs, nil
	}

	ids := make([]uuid.UUID, len(refs))
	for i, ref := range refs {
		ids[i] = ref.DocumentId
	}

	docs, err := uow.DocumentRepository().FindByIds(ctx, ids)
	if err != nil {
		return "", nil, err
	}

	byId := make(map[uuid.UUID]*entity.Document, len(docs))
	for _, doc := range docs {
		if doc.UserId == userId {
			byId[doc.Id] = doc
		}
	}

	var contents []assistant.DocumentContent
	resolved := make([]entity.DocumentRef, 0, len(refs))
	for _, ref := range refs {
		doc, ok := byId[ref.DocumentId]
		if !ok {
			// Unknown or foreign reference; skip rather than leak.
			continue
		}
		filename := ref.Filename
		if filename == "" {
			filename = doc.Filename
		}
		contents = append(contents, assistant.DocumentContent{
			Filename: filename,
			Text:     doc.ExtractedText,
		})
		resolved = append(resolved, entity.DocumentRef{DocumentId: doc.Id, Filename: filename})
	}

	return assistant.BuildPrompt(content, contents), resolved, nil
}

func sessionToDTO(session *entity.ChatSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:        session.Id,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}
