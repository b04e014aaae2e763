package careerflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Provider abstracts the LLM gateway.
type Provider interface {
	// Chat sends a request and returns a complete response. When req.Tools
	// is non-empty the response may contain ToolCalls; when
	// req.ResponseSchema is set the content is JSON matching the schema.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai", "ollama").
	Name() string
}

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// ChatInto runs a structured-output chat and decodes the reply into out.
// stage names the decision being made and shows up in error reporting.
// A reply that fails to decode is an *ErrSchema; callers treat that as
// fatal for the turn.
func ChatInto(ctx context.Context, p Provider, stage string, msgs []ChatMessage, schema *ResponseSchema, out any) (Usage, error) {
	resp, err := p.Chat(ctx, ChatRequest{Messages: msgs, ResponseSchema: schema})
	if err != nil {
		return Usage{}, fmt.Errorf("%s: %w", stage, err)
	}
	raw := extractJSON(resp.Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return resp.Usage, &ErrSchema{Stage: stage, Reason: fmt.Sprintf("decode: %v", err)}
	}
	return resp.Usage, nil
}

// extractJSON tolerates replies that wrap the JSON object in markdown
// fences or reasoning prose. It returns the first top-level {...} block,
// or the input unchanged when none is found.
func extractJSON(s string) string {
	s = StripThink(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case esc:
			esc = false
		case inStr && c == '\\':
			esc = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// StripThink removes <think>...</think> reasoning blocks that some local
// gateways emit even in no_think mode, then trims whitespace.
func StripThink(s string) string {
	for {
		open := strings.Index(s, "<think>")
		if open < 0 {
			break
		}
		close := strings.Index(s[open:], "</think>")
		if close < 0 {
			s = s[:open]
			break
		}
		s = s[:open] + s[open+close+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
