package careerflow

import (
	"context"
	"fmt"
	"log/slog"
)

// recursionLimit bounds how many times a capability loop may re-invoke the
// model after executing a capability. With the initial invocation that
// makes recursionLimit+1 model calls at most per activation.
const recursionLimit = 2

// loopConfig drives one capability-loop activation.
type loopConfig struct {
	provider Provider
	registry *ToolRegistry
	logger   *slog.Logger
}

// runCapabilityLoop runs the model with bound capabilities until it
// answers in plain text or the invocation budget runs out.
//
// Policy: when a reply carries several capability calls, only the FIRST
// one executes; the rest are dropped. One capability per model turn keeps
// the specialists' side effects ordered and their transcripts replayable.
// On budget exhaustion the loop force-terminates and surfaces whatever
// partial answer the model produced so far.
func runCapabilityLoop(ctx context.Context, cfg loopConfig, msgs []ChatMessage) (string, Usage, error) {
	log := cfg.logger
	if log == nil {
		log = nopLogger
	}
	defs := cfg.registry.AllDefinitions()

	var total Usage
	partial := ""
	for turn := 0; turn <= recursionLimit; turn++ {
		resp, err := cfg.provider.Chat(ctx, ChatRequest{Messages: msgs, Tools: defs})
		if err != nil {
			return "", total, fmt.Errorf("capability loop turn %d: %w", turn, err)
		}
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens

		content := StripThink(resp.Content)
		if content != "" {
			partial = content
		}
		if len(resp.ToolCalls) == 0 {
			return content, total, nil
		}

		call := resp.ToolCalls[0]
		if len(resp.ToolCalls) > 1 {
			log.Debug("dropping extra capability calls",
				"kept", call.Name, "dropped", len(resp.ToolCalls)-1)
		}
		if turn == recursionLimit {
			// Budget spent; do not execute another capability.
			break
		}

		res := cfg.registry.Execute(ctx, call.Name, call.Args)
		log.Debug("capability executed",
			"name", call.Name, "failed", res.Error != "", "turn", turn)

		msgs = append(msgs, ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: []ToolCall{call},
		})
		msgs = append(msgs, ToolResultMessage(call.ID, res.Content))
	}

	if partial == "" {
		partial = "I could not finish the request within the allowed number of steps."
	}
	log.Warn("capability loop exhausted", "limit", recursionLimit)
	return partial, total, nil
}
