package assistant

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"agro-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

// scriptedProvider replays one slice of stream events per round and
// records the history it was called with.
type scriptedProvider struct {
	rounds    [][]llm.StreamEvent
	histories [][]llm.Message
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return "", nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, tools []llm.ToolDefinition, opts ...llm.Option) (<-chan llm.StreamEvent, <-chan error) {
	snapshot := make([]llm.Message, len(history))
	copy(snapshot, history)
	p.histories = append(p.histories, snapshot)

	round := p.calls
	if round >= len(p.rounds) {
		round = len(p.rounds) - 1
	}
	p.calls++

	events := make(chan llm.StreamEvent, len(p.rounds[round])+1)
	errs := make(chan error, 1)
	for _, ev := range p.rounds[round] {
		events <- ev
	}
	close(events)
	errs <- nil
	close(errs)
	return events, errs
}

type recordingInvoker struct {
	defs    []llm.ToolDefinition
	calls   []string
	args    []string
	result  string
	callErr error
}

func (i *recordingInvoker) Definitions() []llm.ToolDefinition { return i.defs }

func (i *recordingInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	i.calls = append(i.calls, name)
	i.args = append(i.args, string(args))
	return i.result, i.callErr
}

func contentEvents(parts ...string) []llm.StreamEvent {
	events := make([]llm.StreamEvent, len(parts))
	for i, p := range parts {
		events[i] = llm.StreamEvent{ContentDelta: p}
	}
	return events
}

func toolCallRound(deltas ...llm.ToolCallDelta) []llm.StreamEvent {
	events := make([]llm.StreamEvent, len(deltas))
	for i := range deltas {
		d := deltas[i]
		events[i] = llm.StreamEvent{ToolCallDelta: &d}
	}
	return events
}

func TestRunPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		contentEvents("Olá", ", ", "mundo"),
	}}
	driver := NewDriver(provider, &recordingInvoker{}, nopLogger{})

	var partials []string
	answer, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "oi"}}, func(p string) {
		partials = append(partials, p)
	})

	require.NoError(t, err)
	assert.Equal(t, "Olá, mundo", answer)
	// Progress always carries the cumulative answer.
	assert.Equal(t, []string{"Olá", "Olá, ", "Olá, mundo"}, partials)
}

func TestRunToolRoundThenAnswer(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		toolCallRound(
			llm.ToolCallDelta{Index: 0, Id: "call_1", Name: "get_weather"},
			llm.ToolCallDelta{Index: 0, Arguments: `{"local`},
			llm.ToolCallDelta{Index: 0, Arguments: `": "Sorriso"}`},
		),
		contentEvents("Faz sol."),
	}}
	invoker := &recordingInvoker{result: `{"temperatura_c": 31}`}
	driver := NewDriver(provider, invoker, nopLogger{})

	answer, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "clima?"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Faz sol.", answer)

	// Fragments were concatenated before dispatch.
	require.Len(t, invoker.args, 1)
	assert.JSONEq(t, `{"local": "Sorriso"}`, invoker.args[0])

	// Second round saw the assistant tool request plus the tool result,
	// with the provider's call id echoed back untouched.
	require.Len(t, provider.histories, 2)
	second := provider.histories[1]
	require.Len(t, second, 3)
	require.Len(t, second[1].ToolCalls, 1)
	assert.Equal(t, "call_1", second[1].ToolCalls[0].Id)
	assert.Equal(t, "tool", second[2].Role)
	assert.Equal(t, "call_1", second[2].ToolCallId)
	assert.Equal(t, `{"temperatura_c": 31}`, second[2].Content)
}

func TestRunStopsAtToolRoundLimit(t *testing.T) {
	// The model asks for a tool on every round and never answers.
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		toolCallRound(llm.ToolCallDelta{Index: 0, Id: "c", Name: "get_weather", Arguments: "{}"}),
	}}
	invoker := &recordingInvoker{result: "{}"}
	driver := NewDriver(provider, invoker, nopLogger{})

	answer, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "?"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, IterationLimitMessage, answer)
	assert.Equal(t, MaxToolRounds, provider.calls)
	assert.Len(t, invoker.calls, MaxToolRounds)
}

func TestRunInvalidToolArgumentsBecomeErrorResult(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		toolCallRound(llm.ToolCallDelta{Index: 0, Id: "c1", Name: "get_weather", Arguments: `{"broken`}),
		contentEvents("ok"),
	}}
	invoker := &recordingInvoker{}
	driver := NewDriver(provider, invoker, nopLogger{})

	answer, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "?"}}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	// The tool itself was never invoked.
	assert.Empty(t, invoker.calls)

	second := provider.histories[1]
	toolMsg := second[len(second)-1]
	assert.Equal(t, "tool", toolMsg.Role)
	assert.Contains(t, toolMsg.Content, "argumentos inválidos")
}

func TestRunTruncatesOversizedToolResults(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		toolCallRound(llm.ToolCallDelta{Index: 0, Id: "c1", Name: "buscar_produtos_agrofit", Arguments: "{}"}),
		contentEvents("resumido"),
	}}
	invoker := &recordingInvoker{result: strings.Repeat("x", MaxToolResultChars+1000)}
	driver := NewDriver(provider, invoker, nopLogger{})

	_, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "?"}}, nil)
	require.NoError(t, err)

	second := provider.histories[1]
	toolMsg := second[len(second)-1]
	assert.Len(t, toolMsg.Content, MaxToolResultChars)
}

func TestRunEmptyArgumentsDefaultToEmptyObject(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamEvent{
		toolCallRound(llm.ToolCallDelta{Index: 0, Id: "c1", Name: "listar_culturas_agrofit"}),
		contentEvents("pronto"),
	}}
	invoker := &recordingInvoker{result: "{}"}
	driver := NewDriver(provider, invoker, nopLogger{})

	_, err := driver.Run(context.Background(), []llm.Message{{Role: "user", Content: "?"}}, nil)
	require.NoError(t, err)

	require.Len(t, invoker.args, 1)
	assert.Equal(t, "{}", invoker.args[0])
}
