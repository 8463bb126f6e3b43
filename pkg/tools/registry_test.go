package tools

import (
	"context"
	"encoding/json"
	"testing"

	"agro-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	result string
}

func (t stubTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: t.name, Parameters: json.RawMessage(`{"type":"object"}`)}
}

func (t stubTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return t.result, nil
}

func TestRegistryDefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "b"})
	r.Register(stubTool{name: "a"})
	r.Register(stubTool{name: "c"})

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "b", defs[0].Name)
	assert.Equal(t, "a", defs[1].Name)
	assert.Equal(t, "c", defs[2].Name)
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "echo", result: "ok"})

	out, err := r.Invoke(context.Background(), "echo", json.RawMessage("{}"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "missing", json.RawMessage("{}"))
	require.EqualError(t, err, "unknown tool: missing")
}

func TestRegistryReRegisterReplacesTool(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "echo", result: "old"})
	r.Register(stubTool{name: "echo", result: "new"})

	require.Len(t, r.Definitions(), 1)
	out, err := r.Invoke(context.Background(), "echo", json.RawMessage("{}"))
	require.NoError(t, err)
	assert.Equal(t, "new", out)
}
