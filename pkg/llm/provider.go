package llm

import (
	"context"
	"encoding/json"
)

// Message represents a chat turn in a provider-agnostic format
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "system", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallId string     `json:"tool_call_id,omitempty"` // set on tool-role turns, echoes the request id
}

// ToolCall is a fully assembled tool invocation request from the model.
type ToolCall struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON, as sent by the model
}

// ToolDefinition describes a callable function advertised to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// StreamEvent is one increment of a streamed completion. Exactly one of
// ContentDelta or ToolCallDelta is populated per event; FinishReason is
// only set on the closing event of a round.
type StreamEvent struct {
	ContentDelta  string
	ToolCallDelta *ToolCallDelta
	FinishReason  string
}

// ToolCallDelta is a fragment of a tool call. Arguments may arrive as
// partial JSON spread across many events sharing the same Index; callers
// must concatenate fragments, never replace.
type ToolCallDelta struct {
	Index     int
	Id        string
	Name      string
	Arguments string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Provider defines the contract for any LLM backend
type Provider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream opens a streamed completion. Events arrive on the first
	// channel; both channels are closed when the round ends. At most one
	// error is sent.
	ChatStream(ctx context.Context, history []Message, tools []ToolDefinition, options ...Option) (<-chan StreamEvent, <-chan error)
}
