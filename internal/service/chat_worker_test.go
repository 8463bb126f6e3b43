package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"
	"agro-assistant-be/pkg/assistant"
	"agro-assistant-be/pkg/llm"
	"agro-assistant-be/pkg/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamProvider emits a fixed set of content deltas, or an error.
type fakeStreamProvider struct {
	deltas []string
	err    error

	histories [][]llm.Message
}

func (p *fakeStreamProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return "", nil
}

func (p *fakeStreamProvider) ChatStream(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (<-chan llm.StreamEvent, <-chan error) {
	snapshot := make([]llm.Message, len(history))
	copy(snapshot, history)
	p.histories = append(p.histories, snapshot)

	events := make(chan llm.StreamEvent, len(p.deltas))
	errs := make(chan error, 1)
	if p.err != nil {
		close(events)
		errs <- p.err
		close(errs)
		return events, errs
	}
	for _, d := range p.deltas {
		events <- llm.StreamEvent{ContentDelta: d}
	}
	close(events)
	errs <- nil
	close(errs)
	return events, errs
}

type emptyInvoker struct{}

func (emptyInvoker) Definitions() []llm.ToolDefinition { return nil }
func (emptyInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	return "", errors.New("no tools in this test")
}

func newWorkerEnv(t *testing.T, provider llm.Provider) (*ChatWorker, unitofwork.RepositoryFactory) {
	t.Helper()
	db := newTestDB(t)
	factory := unitofwork.NewRepositoryFactory(db)
	driver := assistant.NewDriver(provider, emptyInvoker{}, nopLogger{})
	worker := NewChatWorker(factory, driver, nil, nil, nil, nopLogger{})
	return worker, factory
}

func chatJob(t *testing.T, payload ChatJobPayload) queue.Job {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return queue.Job{ID: uuid.NewString(), Type: JobTypeChatCompletion, Payload: body, Attempt: 1}
}

func findReply(t *testing.T, factory unitofwork.RepositoryFactory, parentId uuid.UUID) *entity.ChatMessage {
	t.Helper()
	uow := factory.NewUnitOfWork(t.Context())
	reply, err := uow.ChatMessageRepository().FindOne(t.Context(),
		specification.ByParentMessageID{ParentMessageID: parentId})
	require.NoError(t, err)
	return reply
}

func TestHandleCompletesTurn(t *testing.T) {
	provider := &fakeStreamProvider{deltas: []string{"Aplique ", "calcário."}}
	worker, factory := newWorkerEnv(t, provider)

	user := seedUser(t, factory, entity.UserRoleUser)
	session := seedSession(t, factory, user.Id)
	userMsg := seedUserMessage(t, factory, session.Id, "como corrigir o pH do solo?")

	job := chatJob(t, ChatJobPayload{
		SessionId:     session.Id,
		UserMessageId: userMsg.Id,
		UserId:        user.Id,
		ThreadId:      session.ThreadId,
		FullContent:   userMsg.Content,
	})
	require.NoError(t, worker.Handle(t.Context(), job))

	reply := findReply(t, factory, userMsg.Id)
	require.NotNil(t, reply)
	assert.Equal(t, "Aplique calcário.", reply.Content)
	assert.Equal(t, entity.ChatMessageStatusCompleted, reply.Status)

	uow := factory.NewUnitOfWork(t.Context())
	stored, err := uow.ChatMessageRepository().FindOne(t.Context(), specification.ByID{ID: userMsg.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.ChatMessageStatusCompleted, stored.Status)

	// The model got the system prompt plus the current turn.
	require.Len(t, provider.histories, 1)
	history := provider.histories[0]
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, userMsg.Content, history[len(history)-1].Content)
}

func TestHandleReusesExistingAssistantRow(t *testing.T) {
	provider := &fakeStreamProvider{deltas: []string{"resposta final"}}
	worker, factory := newWorkerEnv(t, provider)

	user := seedUser(t, factory, entity.UserRoleUser)
	session := seedSession(t, factory, user.Id)
	userMsg := seedUserMessage(t, factory, session.Id, "oi")

	// A previous attempt already created the reply row with partial text.
	uow := factory.NewUnitOfWork(t.Context())
	parentId := userMsg.Id
	stale := &entity.ChatMessage{
		Id:              uuid.New(),
		ChatSessionId:   session.Id,
		ParentMessageId: &parentId,
		Role:            entity.ChatMessageRoleAssistant,
		Content:         "resposta pela met",
		Status:          entity.ChatMessageStatusProcessing,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, uow.ChatMessageRepository().Create(t.Context(), stale))

	job := chatJob(t, ChatJobPayload{
		SessionId:     session.Id,
		UserMessageId: userMsg.Id,
		UserId:        user.Id,
		FullContent:   "oi",
	})
	require.NoError(t, worker.Handle(t.Context(), job))

	replies, err := uow.ChatMessageRepository().FindAll(t.Context(),
		specification.ByParentMessageID{ParentMessageID: userMsg.Id})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, stale.Id, replies[0].Id)
	assert.Equal(t, "resposta final", replies[0].Content)
	assert.Equal(t, entity.ChatMessageStatusCompleted, replies[0].Status)
}

func TestHandleSkipsAlreadyCompletedMessage(t *testing.T) {
	provider := &fakeStreamProvider{deltas: []string{"nunca usado"}}
	worker, factory := newWorkerEnv(t, provider)

	user := seedUser(t, factory, entity.UserRoleUser)
	session := seedSession(t, factory, user.Id)
	userMsg := seedUserMessage(t, factory, session.Id, "oi")

	uow := factory.NewUnitOfWork(t.Context())
	userMsg.Status = entity.ChatMessageStatusCompleted
	require.NoError(t, uow.ChatMessageRepository().Update(t.Context(), userMsg))

	job := chatJob(t, ChatJobPayload{SessionId: session.Id, UserMessageId: userMsg.Id, FullContent: "oi"})
	require.NoError(t, worker.Handle(t.Context(), job))

	assert.Empty(t, provider.histories)
}

func TestHandleFailureMarksUserMessageFailed(t *testing.T) {
	provider := &fakeStreamProvider{err: errors.New("provider down")}
	worker, factory := newWorkerEnv(t, provider)

	user := seedUser(t, factory, entity.UserRoleUser)
	session := seedSession(t, factory, user.Id)
	userMsg := seedUserMessage(t, factory, session.Id, "oi")

	job := chatJob(t, ChatJobPayload{SessionId: session.Id, UserMessageId: userMsg.Id, FullContent: "oi"})
	err := worker.Handle(t.Context(), job)
	require.EqualError(t, err, "provider down")

	uow := factory.NewUnitOfWork(t.Context())
	stored, err := uow.ChatMessageRepository().FindOne(t.Context(), specification.ByID{ID: userMsg.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.ChatMessageStatusFailed, stored.Status)
}

func TestExhaustedMarksUserMessageFailed(t *testing.T) {
	provider := &fakeStreamProvider{}
	worker, factory := newWorkerEnv(t, provider)

	user := seedUser(t, factory, entity.UserRoleUser)
	session := seedSession(t, factory, user.Id)
	userMsg := seedUserMessage(t, factory, session.Id, "oi")

	job := chatJob(t, ChatJobPayload{SessionId: session.Id, UserMessageId: userMsg.Id, UserId: user.Id})
	worker.Exhausted(t.Context(), job, errors.New("all attempts failed"))

	uow := factory.NewUnitOfWork(t.Context())
	stored, err := uow.ChatMessageRepository().FindOne(t.Context(), specification.ByID{ID: userMsg.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.ChatMessageStatusFailed, stored.Status)
}

func TestSessionLocksEvictIdleEntries(t *testing.T) {
	locks := newSessionLocks()
	sessionId := uuid.New()

	locks.lock(sessionId)
	locks.unlock(sessionId)
	assert.Empty(t, locks.locks)

	// Concurrent holders still serialize, and the entry disappears
	// once the last one releases.
	var wg sync.WaitGroup
	turns := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock(sessionId)
			turns++
			locks.unlock(sessionId)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, turns)
	assert.Empty(t, locks.locks)
}

func TestProgressThrottle(t *testing.T) {
	now := time.Now()
	throttle := &progressThrottle{
		minInterval: 150 * time.Millisecond,
		minGrowth:   15,
		now:         func() time.Time { return now },
	}

	// First partial: interval since the zero time is always satisfied.
	assert.True(t, throttle.shouldFlush("abc"))

	// Small growth, no time passed, no paragraph break.
	assert.False(t, throttle.shouldFlush("abcdef"))

	// Paragraph break flushes regardless of time and growth.
	assert.True(t, throttle.shouldFlush("abcdef\n\n"))

	// Growth beyond the threshold flushes.
	assert.False(t, throttle.shouldFlush("abcdef\n\nxxxx"))
	assert.True(t, throttle.shouldFlush("abcdef\n\nxxxxxxxxxxxxxxxxxxxx"))

	// Time alone flushes once the interval elapses.
	assert.False(t, throttle.shouldFlush("abcdef\n\nxxxxxxxxxxxxxxxxxxxxy"))
	now = now.Add(200 * time.Millisecond)
	assert.True(t, throttle.shouldFlush("abcdef\n\nxxxxxxxxxxxxxxxxxxxxyz"))
}
