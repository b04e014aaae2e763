package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/nevindra/careerflow"
)

func TestBuildBodyRolesAndModel(t *testing.T) {
	req := BuildBody([]careerflow.ChatMessage{
		careerflow.SystemMessage("be helpful"),
		careerflow.UserMessage("hi"),
	}, nil, "qwen3:8b", nil)

	if req.Model != "qwen3:8b" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.ResponseFormat != nil || req.Tools != nil {
		t.Error("unset fields must stay empty")
	}
}

func TestBuildBodyToolCallExchange(t *testing.T) {
	msgs := []careerflow.ChatMessage{
		{
			Role:    "assistant",
			Content: "",
			ToolCalls: []careerflow.ToolCall{
				{ID: "call-1", Name: "search_jobs_by_query", Args: []byte(`{"query": "go"}`)},
			},
		},
		careerflow.ToolResultMessage("call-1", `{"hits": 3}`),
	}
	req := BuildBody(msgs, nil, "m", nil)

	if len(req.Messages) != 2 {
		t.Fatalf("messages = %d", len(req.Messages))
	}
	asst := req.Messages[0]
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Type != "function" {
		t.Fatalf("assistant = %+v", asst)
	}
	fc := asst.ToolCalls[0].Function
	if fc.Name != "search_jobs_by_query" || fc.Arguments != `{"query": "go"}` {
		t.Errorf("function call = %+v", fc)
	}
	tool := req.Messages[1]
	if tool.Role != "tool" || tool.ToolCallID != "call-1" {
		t.Errorf("tool message = %+v", tool)
	}
}

func TestBuildBodyStructuredOutput(t *testing.T) {
	schema := &careerflow.ResponseSchema{
		Name:   "supervisor_route",
		Schema: json.RawMessage(`{"type": "object"}`),
	}
	req := BuildBody([]careerflow.ChatMessage{careerflow.UserMessage("x")}, nil, "m", schema)

	rf := req.ResponseFormat
	if rf == nil || rf.Type != "json_schema" {
		t.Fatalf("response format = %+v", rf)
	}
	if rf.JSONSchema.Name != "supervisor_route" || !rf.JSONSchema.Strict {
		t.Errorf("json schema = %+v", rf.JSONSchema)
	}
}

func TestBuildBodyAppliesOptions(t *testing.T) {
	req := BuildBody([]careerflow.ChatMessage{careerflow.UserMessage("x")}, nil, "m", nil,
		WithTemperature(0), WithSeed(42), WithMaxTokens(256))

	if req.Temperature == nil || *req.Temperature != 0 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.Seed == nil || *req.Seed != 42 {
		t.Errorf("seed = %v", req.Seed)
	}
	if req.MaxTokens != 256 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestBuildToolDefsEmptyParameters(t *testing.T) {
	defs := BuildToolDefs([]careerflow.ToolDefinition{{Name: "noop"}})
	if len(defs) != 1 || defs[0].Type != "function" {
		t.Fatalf("defs = %+v", defs)
	}
	if string(defs[0].Function.Parameters) != `{}` {
		t.Errorf("parameters = %s, want empty object", defs[0].Function.Parameters)
	}
}
