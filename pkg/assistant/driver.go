package assistant

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/pkg/llm"
)

const (
	// MaxToolRounds bounds the tool-calling loop: a model that keeps
	// requesting tools terminates with IterationLimitMessage.
	MaxToolRounds = 5

	// MaxToolResultChars caps a single serialized tool result before it
	// re-enters the conversation, bounding token usage.
	MaxToolResultChars = 50000

	IterationLimitMessage = "Limite de iterações excedido ao processar sua pergunta. Por favor, tente reformular ou enviar novamente."
)

// ToolInvoker dispatches tool calls requested by the model.
type ToolInvoker interface {
	Definitions() []llm.ToolDefinition
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// ProgressFunc receives the cumulative partial answer as it streams in.
type ProgressFunc func(partial string)

// Driver runs one user turn to completion, including any tool rounds
// the model requests along the way.
type Driver struct {
	provider llm.Provider
	invoker  ToolInvoker
	logger   logger.ILogger
}

func NewDriver(provider llm.Provider, invoker ToolInvoker, log logger.ILogger) *Driver {
	return &Driver{
		provider: provider,
		invoker:  invoker,
		logger:   log,
	}
}

// pendingCall accumulates one tool call from streamed fragments.
type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// Run streams a completion for the given history, invoking onProgress
// with the cumulative answer on every text delta. Tool calls requested
// by the model are dispatched and their results fed back for up to
// MaxToolRounds rounds.
func (d *Driver) Run(ctx context.Context, history []llm.Message, onProgress ProgressFunc) (string, error) {
	messages := make([]llm.Message, len(history))
	copy(messages, history)

	var answer strings.Builder

	for round := 0; round < MaxToolRounds; round++ {
		events, errs := d.provider.ChatStream(ctx, messages, d.invoker.Definitions())

		var roundContent strings.Builder
		calls := make(map[int]*pendingCall)

		for ev := range events {
			if ev.ContentDelta != "" {
				roundContent.WriteString(ev.ContentDelta)
				answer.WriteString(ev.ContentDelta)
				if onProgress != nil {
					onProgress(answer.String())
				}
			}
			if ev.ToolCallDelta != nil {
				delta := ev.ToolCallDelta
				call, ok := calls[delta.Index]
				if !ok {
					call = &pendingCall{index: delta.Index}
					calls[delta.Index] = call
				}
				if delta.Id != "" {
					call.id = delta.Id
				}
				if delta.Name != "" {
					call.name = delta.Name
				}
				// Argument JSON arrives fragmented; always append.
				call.args.WriteString(delta.Arguments)
			}
		}
		if err := <-errs; err != nil {
			return "", err
		}

		if len(calls) == 0 {
			return answer.String(), nil
		}

		ordered := make([]*pendingCall, 0, len(calls))
		for _, call := range calls {
			ordered = append(ordered, call)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

		assistantTurn := llm.Message{Role: "assistant", Content: roundContent.String()}
		for _, call := range ordered {
			assistantTurn.ToolCalls = append(assistantTurn.ToolCalls, llm.ToolCall{
				Id:        call.id,
				Name:      call.name,
				Arguments: call.args.String(),
			})
		}
		messages = append(messages, assistantTurn)

		for _, call := range ordered {
			result := d.dispatch(ctx, call)
			if len(result) > MaxToolResultChars {
				result = result[:MaxToolResultChars]
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallId: call.id,
			})
		}
	}

	d.logger.Warn("assistant", "tool round limit reached", map[string]interface{}{
		"rounds": MaxToolRounds,
	})
	return IterationLimitMessage, nil
}

// dispatch runs one tool call. Argument parse failures and tool errors
// become structured {error} results so a single bad call never aborts
// the whole turn.
func (d *Driver) dispatch(ctx context.Context, call *pendingCall) string {
	rawArgs := call.args.String()
	if rawArgs == "" {
		rawArgs = "{}"
	}

	if !json.Valid([]byte(rawArgs)) {
		d.logger.Warn("assistant", "tool arguments are not valid JSON", map[string]interface{}{
			"tool": call.name,
		})
		return errorResult("argumentos inválidos para a ferramenta " + call.name)
	}

	result, err := d.invoker.Invoke(ctx, call.name, json.RawMessage(rawArgs))
	if err != nil {
		d.logger.Warn("assistant", "tool invocation failed", map[string]interface{}{
			"tool":  call.name,
			"error": err.Error(),
		})
		return errorResult(err.Error())
	}
	return result
}

func errorResult(message string) string {
	out, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(out)
}
