package careerflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Recall tuning: how far into the archive a query reaches.
const (
	recallLimit    = 3
	recallMinScore = 0.5
)

// NewRecallTool returns a capability that searches the user's archived
// (compacted) conversation history by meaning. It lets specialists answer
// "what did we discuss before" even after the messages left the window.
func NewRecallTool(emb EmbeddingProvider, mem MemoryStore, userID string) Tool {
	return &FuncTool{
		Def: ToolDefinition{
			Name:        "recall_chat_history",
			Description: "Search earlier conversation history that is no longer in the visible window.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string"}},
				"required": ["query"]
			}`),
		},
		Fn: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("bad arguments: %w", err)
			}
			if strings.TrimSpace(in.Query) == "" {
				return "", fmt.Errorf("query is required")
			}
			if emb == nil {
				return "", fmt.Errorf("no embedding provider configured")
			}
			vecs, err := emb.Embed(ctx, []string{in.Query})
			if err != nil {
				return "", fmt.Errorf("embed query: %w", err)
			}
			if len(vecs) == 0 {
				return "", fmt.Errorf("embedder returned no vector")
			}
			msgs, err := mem.SearchArchive(ctx, userID, vecs[0], recallLimit, recallMinScore)
			if err != nil {
				return "", err
			}
			if len(msgs) == 0 {
				return "Nothing relevant found in earlier history.", nil
			}
			var b strings.Builder
			for _, m := range msgs {
				fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}
