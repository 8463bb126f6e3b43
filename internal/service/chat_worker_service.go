package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"
	"agro-assistant-be/pkg/assistant"
	"agro-assistant-be/pkg/events"
	"agro-assistant-be/pkg/llm"
	pktNats "agro-assistant-be/pkg/nats"
	"agro-assistant-be/pkg/queue"

	"github.com/google/uuid"
)

const JobTypeChatCompletion = "chat.completion"

// historyLimit bounds how many stored messages are replayed to the model.
const historyLimit = 20

// ChatJobPayload is the body of a chat.completion job. FullContent is
// the document-augmented prompt; the stored message keeps the raw text.
type ChatJobPayload struct {
	SessionId     uuid.UUID `json:"session_id"`
	UserMessageId uuid.UUID `json:"user_message_id"`
	UserId        uuid.UUID `json:"user_id"`
	ThreadId      string    `json:"thread_id"`
	FullContent   string    `json:"full_content"`
}

// sessionLocks serializes jobs that target the same chat session, so
// two rapid sends from one user never interleave their histories.
// Entries are refcounted and dropped once nobody holds or waits on
// them, keeping the map bounded by in-flight jobs.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sessionLock)}
}

// lock blocks until the caller holds the session. Every lock must be
// paired with an unlock for the same id.
func (s *sessionLocks) lock(sessionId uuid.UUID) {
	s.mu.Lock()
	l, ok := s.locks[sessionId]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionId] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
}

func (s *sessionLocks) unlock(sessionId uuid.UUID) {
	s.mu.Lock()
	l := s.locks[sessionId]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionId)
	}
	s.mu.Unlock()

	l.mu.Unlock()
}

// progressThrottle decides when a streamed partial answer is worth a
// database write: enough time passed, enough new text arrived, or the
// partial ends on a paragraph break.
type progressThrottle struct {
	minInterval time.Duration
	minGrowth   int
	now         func() time.Time

	lastFlush time.Time
	lastLen   int
}

func newProgressThrottle() *progressThrottle {
	return &progressThrottle{
		minInterval: 150 * time.Millisecond,
		minGrowth:   15,
		now:         time.Now,
	}
}

func (t *progressThrottle) shouldFlush(partial string) bool {
	flush := t.now().Sub(t.lastFlush) >= t.minInterval ||
		len(partial)-t.lastLen > t.minGrowth ||
		strings.HasSuffix(partial, "\n\n")
	if flush {
		t.lastFlush = t.now()
		t.lastLen = len(partial)
	}
	return flush
}

// ProgressNotifier pushes streamed partials to connected clients so
// they see text arrive without polling. Implemented by the websocket hub.
type ProgressNotifier interface {
	SendEvent(userID uuid.UUID, eventType string, payload interface{})
}

// ChatWorker consumes chat.completion jobs: it drives the completion,
// streams partials into the assistant row and settles both message
// statuses when the turn finishes.
type ChatWorker struct {
	uowFactory unitofwork.RepositoryFactory
	driver     *assistant.Driver
	titler     TitleGenerator
	publisher  *pktNats.Publisher
	progress   ProgressNotifier
	logger     logger.ILogger
	locks      *sessionLocks
}

// TitleGenerator produces a short session title from the first question.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, question string) (string, error)
}

type llmTitleGenerator struct {
	provider llm.Provider
}

func NewTitleGenerator(provider llm.Provider) TitleGenerator {
	return &llmTitleGenerator{provider: provider}
}

func (g *llmTitleGenerator) GenerateTitle(ctx context.Context, question string) (string, error) {
	title, err := g.provider.Chat(ctx,
		[]llm.Message{{Role: "user", Content: assistant.TitlePrompt(question)}},
		llm.WithMaxTokens(30),
	)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(title), `"'`), nil
}

func NewChatWorker(uowFactory unitofwork.RepositoryFactory, driver *assistant.Driver, titler TitleGenerator, publisher *pktNats.Publisher, progress ProgressNotifier, log logger.ILogger) *ChatWorker {
	return &ChatWorker{
		uowFactory: uowFactory,
		driver:     driver,
		titler:     titler,
		publisher:  publisher,
		progress:   progress,
		logger:     log,
		locks:      newSessionLocks(),
	}
}

// Handle runs one completion attempt. Errors are returned so the queue
// applies its retry policy; the exhaustion hook settles the final state.
func (w *ChatWorker) Handle(ctx context.Context, job queue.Job) error {
	var payload ChatJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("undecodable chat job payload: %w", err)
	}

	w.locks.lock(payload.SessionId)
	defer w.locks.unlock(payload.SessionId)

	uow := w.uowFactory.NewUnitOfWork(ctx)
	messages := uow.ChatMessageRepository()

	userMessage, err := messages.FindOne(ctx, specification.ByID{ID: payload.UserMessageId})
	if err != nil {
		return err
	}
	if userMessage == nil {
		// Message deleted between enqueue and processing; nothing to do.
		w.logger.Warn("chat_worker", "user message vanished before processing", map[string]interface{}{
			"message_id": payload.UserMessageId.String(),
		})
		return nil
	}
	if userMessage.Status == entity.ChatMessageStatusCompleted {
		// A previous attempt already finished this turn.
		return nil
	}

	userMessage.Status = entity.ChatMessageStatusProcessing
	if err := messages.Update(ctx, userMessage); err != nil {
		return err
	}

	assistantRow, err := w.findOrCreateReply(ctx, uow, userMessage)
	if err != nil {
		return err
	}
	if assistantRow.Status == entity.ChatMessageStatusCompleted {
		userMessage.Status = entity.ChatMessageStatusCompleted
		return messages.Update(ctx, userMessage)
	}

	history, err := w.buildHistory(ctx, uow, payload, userMessage)
	if err != nil {
		return w.fail(ctx, uow, userMessage, err)
	}

	throttle := newProgressThrottle()
	onProgress := func(partial string) {
		if !throttle.shouldFlush(partial) {
			return
		}
		assistantRow.Content = partial
		if err := messages.Update(ctx, assistantRow); err != nil {
			w.logger.Warn("chat_worker", "progress write failed", map[string]interface{}{
				"message_id": assistantRow.Id.String(),
				"error":      err.Error(),
			})
		}
		w.pushProgress(payload, assistantRow.Id, partial)
	}

	answer, err := w.driver.Run(ctx, history, onProgress)
	if err != nil {
		return w.fail(ctx, uow, userMessage, err)
	}

	// Final write always lands, whatever the throttle last decided.
	assistantRow.Content = answer
	assistantRow.Status = entity.ChatMessageStatusCompleted
	if err := messages.Update(ctx, assistantRow); err != nil {
		return w.fail(ctx, uow, userMessage, err)
	}
	w.pushProgress(payload, assistantRow.Id, answer)

	userMessage.Status = entity.ChatMessageStatusCompleted
	if err := messages.Update(ctx, userMessage); err != nil {
		return err
	}

	w.maybeTitleSession(ctx, uow, payload.SessionId, userMessage.Content)

	w.logger.Info("chat_worker", "completion finished", map[string]interface{}{
		"session_id": payload.SessionId.String(),
		"message_id": userMessage.Id.String(),
		"attempt":    job.Attempt,
	})
	return nil
}

// Exhausted is the queue hook for a job whose last attempt failed: the
// user message lands in failed and the failure is announced on the bus.
func (w *ChatWorker) Exhausted(ctx context.Context, job queue.Job, jobErr error) {
	if job.Type != JobTypeChatCompletion {
		return
	}

	var payload ChatJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return
	}

	uow := w.uowFactory.NewUnitOfWork(ctx)
	userMessage, err := uow.ChatMessageRepository().FindOne(ctx, specification.ByID{ID: payload.UserMessageId})
	if err != nil || userMessage == nil {
		return
	}

	userMessage.Status = entity.ChatMessageStatusFailed
	if err := uow.ChatMessageRepository().Update(ctx, userMessage); err != nil {
		w.logger.Error("chat_worker", "failed to mark message as failed", map[string]interface{}{
			"message_id": userMessage.Id.String(),
			"error":      err.Error(),
		})
	}

	errText := ""
	if jobErr != nil {
		errText = jobErr.Error()
	}
	w.logger.Error("chat_worker", "completion exhausted all attempts", map[string]interface{}{
		"session_id": payload.SessionId.String(),
		"message_id": payload.UserMessageId.String(),
		"error":      errText,
	})

	if w.publisher != nil {
		event := events.NewEvent(events.TypeChatMessageFailed, map[string]interface{}{
			"user_id":    payload.UserId.String(),
			"session_id": payload.SessionId.String(),
			"message_id": payload.UserMessageId.String(),
			"error":      errText,
		})
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.logger.Warn("chat_worker", "failed to publish failure event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// findOrCreateReply returns the assistant row for this user message,
// creating it on the first attempt. The unique index on the parent id
// keeps retries from ever producing a second reply.
func (w *ChatWorker) findOrCreateReply(ctx context.Context, uow unitofwork.UnitOfWork, userMessage *entity.ChatMessage) (*entity.ChatMessage, error) {
	existing, err := uow.ChatMessageRepository().FindOne(ctx,
		specification.ByParentMessageID{ParentMessageID: userMessage.Id})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Status.IsTerminal() {
			existing.Status = entity.ChatMessageStatusProcessing
		}
		return existing, nil
	}

	parentId := userMessage.Id
	reply := &entity.ChatMessage{
		Id:              uuid.New(),
		ChatSessionId:   userMessage.ChatSessionId,
		ParentMessageId: &parentId,
		Role:            entity.ChatMessageRoleAssistant,
		Status:          entity.ChatMessageStatusProcessing,
		CreatedAt:       time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// buildHistory assembles the model conversation: system prompt, the
// recent stored exchange in chronological order, then the current turn
// with its document-augmented content.
func (w *ChatWorker) buildHistory(ctx context.Context, uow unitofwork.UnitOfWork, payload ChatJobPayload, userMessage *entity.ChatMessage) ([]llm.Message, error) {
	stored, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: payload.SessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: historyLimit},
	)
	if err != nil {
		return nil, err
	}

	history := []llm.Message{{Role: "system", Content: assistant.SystemPrompt}}
	for i := len(stored) - 1; i >= 0; i-- {
		m := stored[i]
		if m.Id == userMessage.Id || m.ParentMessageId != nil && *m.ParentMessageId == userMessage.Id {
			continue
		}
		if m.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	history = append(history, llm.Message{Role: "user", Content: payload.FullContent})
	return history, nil
}

// pushProgress streams the cumulative partial to the user's connected
// clients. Best effort; polling remains the source of truth.
func (w *ChatWorker) pushProgress(payload ChatJobPayload, replyId uuid.UUID, partial string) {
	if w.progress == nil {
		return
	}
	w.progress.SendEvent(payload.UserId, "chat_progress", map[string]interface{}{
		"session_id": payload.SessionId.String(),
		"message_id": payload.UserMessageId.String(),
		"reply_id":   replyId.String(),
		"content":    partial,
	})
}

func (w *ChatWorker) fail(ctx context.Context, uow unitofwork.UnitOfWork, userMessage *entity.ChatMessage, cause error) error {
	userMessage.Status = entity.ChatMessageStatusFailed
	if err := uow.ChatMessageRepository().Update(ctx, userMessage); err != nil {
		w.logger.Error("chat_worker", "failed to persist failure status", map[string]interface{}{
			"message_id": userMessage.Id.String(),
			"error":      err.Error(),
		})
	}
	return cause
}

// maybeTitleSession renames a default-titled session after its first
// completed exchange. Best effort.
func (w *ChatWorker) maybeTitleSession(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, question string) {
	if w.titler == nil {
		return
	}

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil || session == nil || session.Title != "Nova conversa" {
		return
	}

	title, err := w.titler.GenerateTitle(ctx, question)
	if err != nil || title == "" {
		return
	}

	session.Title = title
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		w.logger.Warn("chat_worker", "failed to persist session title", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}
}
