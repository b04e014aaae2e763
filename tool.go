package careerflow

import (
	"context"
	"encoding/json"
)

// Tool defines a specialist capability with one or more callable functions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a capability execution.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// ToolRegistry holds the capabilities bound to one specialist and
// dispatches execution.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	return &ToolRegistry{tools: tools}
}

// Add registers a capability.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// AllDefinitions returns definitions from all registered capabilities.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Execute dispatches a capability call by name. Handler failures never
// escape as errors: they come back as the JSON payload {"error": reason}
// so the model sees the failure as data and the loop keeps running.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) ToolResult {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				res, err := t.Execute(ctx, name, args)
				if err != nil {
					return errResult(err.Error())
				}
				if res.Error != "" {
					return errResult(res.Error)
				}
				return res
			}
		}
	}
	return errResult("unknown capability: " + name)
}

func errResult(reason string) ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return ToolResult{Content: string(payload), Error: reason}
}

// FuncTool adapts a single function into a Tool.
type FuncTool struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *FuncTool) Definitions() []ToolDefinition { return []ToolDefinition{f.Def} }

func (f *FuncTool) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	out, err := f.Fn(ctx, args)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{Content: out}, nil
}
